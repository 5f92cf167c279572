package engine

import (
	"go.uber.org/zap"

	"github.com/stanza-md/stanza/block"
	"github.com/stanza-md/stanza/textmerge"
)

// HandleRemoteText feeds a new full-document text from a collaborator into
// the session. The change merges immediately when the local editor is idle
// and no block holds focus; otherwise it parks as the pending remote text,
// replacing any earlier one, until the idle window elapses or the focused
// block blurs.
func (s *Session) HandleRemoteText(text string) {
	s.mu.Lock()
	applied := false
	if s.canMergeNowLocked() {
		applied = s.mergeRemoteLocked(text)
	} else {
		s.remoteQueued = true
		s.remoteText = text
		s.armIdleLocked()
		s.log.Debug("remote change deferred", zap.Int("len", len(text)))
	}
	s.mu.Unlock()
	if applied {
		s.notifyChange()
	}
}

// PendingRemote reports whether a remote change is parked waiting for the
// local editor to go idle.
func (s *Session) PendingRemote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteQueued
}

func (s *Session) canMergeNowLocked() bool {
	if s.sel.active && !s.opts.AllowRemoteWhileFocused {
		return false
	}
	return s.now().Sub(s.lastLocalEdit) >= s.opts.idleThreshold()
}

// mergeRemoteLocked three-way merges the remote text over the local
// document and re-chunks. Reports whether the document changed.
func (s *Session) mergeRemoteLocked(text string) bool {
	merged := textmerge.Merge(s.baseline, s.doc, text)
	if merged == s.doc {
		s.log.Debug("remote change is a no-op")
		return false
	}
	snap, snapOK := s.captureSelectionLocked()
	prevBlocks := s.blocks
	s.blocks = s.chunker.SplitIncremental(s.doc, merged, prevBlocks)
	s.doc = block.Join(s.blocks)
	s.refreshMountedLocked(prevBlocks, "", "", nil, true)
	if snapOK {
		s.restoreSelectionLocked(snap)
	} else {
		s.clampSelectionLocked()
	}
	s.armSaveLocked()
	s.log.Debug("remote change merged", zap.Int("doc_len", len(s.doc)))
	return true
}

// previewPendingLocked re-merges the pending remote text against the
// document after a local edit. When the local edit already produced the
// merged outcome, typically because the editor typed the same change the
// remote carries, the pending merge is dropped and the idle timer stops.
func (s *Session) previewPendingLocked() {
	if !s.remoteQueued {
		return
	}
	if textmerge.Merge(s.baseline, s.doc, s.remoteText) != s.doc {
		return
	}
	s.remoteQueued = false
	s.remoteText = ""
	s.stopIdleLocked()
	s.log.Debug("pending remote dropped, local text already matches")
}

func (s *Session) armIdleLocked() {
	s.stopIdleLocked()
	s.idleTimer = s.newTimer(s.opts.idleThreshold(), s.onIdleTimer)
}

func (s *Session) stopIdleLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

// onIdleTimer fires when an idle window may have elapsed. Typing after the
// timer was armed pushes lastLocalEdit forward, so the pending merge may
// still be premature; in that case the timer re-arms for another window.
func (s *Session) onIdleTimer() {
	s.mu.Lock()
	s.idleTimer = nil
	applied := false
	if s.remoteQueued {
		if s.canMergeNowLocked() {
			text := s.remoteText
			s.remoteQueued = false
			s.remoteText = ""
			applied = s.mergeRemoteLocked(text)
		} else {
			s.armIdleLocked()
		}
	}
	s.mu.Unlock()
	if applied {
		s.notifyChange()
	}
}

func (s *Session) armSaveLocked() {
	if s.opts.Commit == nil {
		return
	}
	s.stopSaveLocked()
	s.saveTimer = s.newTimer(s.opts.saveDebounce(), s.onSaveTimer)
}

func (s *Session) stopSaveLocked() {
	if s.saveTimer != nil {
		s.saveTimer.Stop()
		s.saveTimer = nil
	}
}

func (s *Session) onSaveTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveTimer = nil
	s.saveLocked()
}

// saveLocked commits the document when it differs from the baseline. The
// baseline advances only on success, so a failed commit retries the same
// span next time.
func (s *Session) saveLocked() {
	if s.opts.Commit == nil {
		return
	}
	if s.doc == s.baseline {
		s.log.Debug("save skipped, document unchanged")
		return
	}
	if err := s.opts.Commit(s.doc); err != nil {
		s.saveErr = err
		s.log.Error("commit failed", zap.Error(err))
		return
	}
	s.saveErr = nil
	s.baseline = s.doc
	s.log.Debug("document committed", zap.Int("len", len(s.doc)))
}

// Flush cancels the save debounce and commits any outstanding edits now.
func (s *Session) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopSaveLocked()
	s.saveLocked()
}

// LastSaveError returns the error from the most recent commit attempt, or
// nil when it succeeded.
func (s *Session) LastSaveError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveErr
}
