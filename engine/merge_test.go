package engine

import (
	"errors"
	"testing"
	"time"
)

func TestSession_HandleRemoteText_AppliesWhenIdle(t *testing.T) {
	var changes int
	s, _, _ := newTestSession(t, "# Title\n\nbody", Options{
		ChunkTarget: 8,
		OnChange:    func() { changes++ },
	})
	before := s.Blocks()

	s.HandleRemoteText("# Title\n\nbody text")

	if got, want := s.Document(), "# Title\n\nbody text"; got != want {
		t.Fatalf("Document() = %q, want %q", got, want)
	}
	if got, want := changes, 1; got != want {
		t.Fatalf("OnChange fired %d times, want %d", got, want)
	}
	after := s.Blocks()
	if got, want := after[1].ID, before[1].ID; got != want {
		t.Fatalf("rewritten block lost its ID: %q != %q", got, want)
	}
	if got, want := after[1].TreeVersion, 1; got != want {
		t.Fatalf("rewritten block TreeVersion = %d, want %d", got, want)
	}
	if got, want := after[0].TreeVersion, 0; got != want {
		t.Fatalf("untouched block TreeVersion = %d, want %d", got, want)
	}
}

func TestSession_HandleRemoteText_NoOpStaysQuiet(t *testing.T) {
	var changes int
	s, _, _ := newTestSession(t, "# Title\n\nbody", Options{
		ChunkTarget: 8,
		OnChange:    func() { changes++ },
	})

	s.HandleRemoteText("# Title\n\nbody")

	if got, want := changes, 0; got != want {
		t.Fatalf("OnChange fired %d times for a no-op", got)
	}
	if got, want := s.Blocks()[0].TreeVersion, 0; got != want {
		t.Fatalf("no-op bumped TreeVersion to %d", got)
	}
}

func TestSession_HandleRemoteText_DefersWhileFocused(t *testing.T) {
	var changes int
	s, _, timers := newTestSession(t, "# Title\n\nbody", Options{
		ChunkTarget: 8,
		OnChange:    func() { changes++ },
	})
	if _, _, ok := s.MountBlock(s.Blocks()[1].ID); !ok {
		t.Fatalf("MountBlock failed")
	}
	s.FocusBlock(1, EdgeStart)

	s.HandleRemoteText("# Title\n\nbody text")

	if !s.PendingRemote() {
		t.Fatalf("remote change not queued while focused")
	}
	if got, want := s.Document(), "# Title\n\nbody"; got != want {
		t.Fatalf("Document() = %q, want untouched %q", got, want)
	}
	if got, want := changes, 0; got != want {
		t.Fatalf("OnChange fired %d times before the merge landed", got)
	}
	if got, want := timers.timers[0].d, DefaultIdleThreshold; got != want {
		t.Fatalf("idle timer armed for %v, want %v", got, want)
	}

	s.BlurBlock()

	if s.PendingRemote() {
		t.Fatalf("pending merge survived blur")
	}
	if got, want := s.Document(), "# Title\n\nbody text"; got != want {
		t.Fatalf("Document() = %q, want %q", got, want)
	}
	if got, want := changes, 1; got != want {
		t.Fatalf("OnChange fired %d times, want %d", got, want)
	}
	if got, want := timers.fire(), 0; got != want {
		t.Fatalf("%d stale timers fired after blur", got)
	}
}

func TestSession_HandleRemoteText_WaitsOutTypingLull(t *testing.T) {
	var changes int
	s, clock, timers := newTestSession(t, "# Title\n\nbody", Options{
		ChunkTarget: 8,
		OnChange:    func() { changes++ },
	})
	s.ReplaceBlockMarkdown(1, "body!")
	clock.Advance(200 * time.Millisecond)

	s.HandleRemoteText("# New\n\nbody")

	if !s.PendingRemote() {
		t.Fatalf("remote change not deferred during the typing lull")
	}

	// The idle timer fires early relative to the last keystroke and re-arms.
	if got, want := timers.fire(), 1; got != want {
		t.Fatalf("fired %d timers, want %d", got, want)
	}
	if !s.PendingRemote() {
		t.Fatalf("premature idle fire applied the merge")
	}
	if got, want := s.Document(), "# Title\n\nbody!"; got != want {
		t.Fatalf("Document() = %q, want untouched %q", got, want)
	}

	clock.Advance(550 * time.Millisecond)
	if got, want := timers.fire(), 1; got != want {
		t.Fatalf("fired %d timers, want %d", got, want)
	}
	if s.PendingRemote() {
		t.Fatalf("idle elapsed but the merge is still pending")
	}
	if got, want := s.Document(), "# New\n\nbody!"; got != want {
		t.Fatalf("Document() = %q, want merged %q", got, want)
	}
	if got, want := changes, 1; got != want {
		t.Fatalf("OnChange fired %d times, want %d", got, want)
	}
}

func TestSession_HandleRemoteText_LatestPendingWins(t *testing.T) {
	var changes int
	s, _, timers := newTestSession(t, "# Title\n\nbody", Options{
		ChunkTarget: 8,
		OnChange:    func() { changes++ },
	})
	if _, _, ok := s.MountBlock(s.Blocks()[1].ID); !ok {
		t.Fatalf("MountBlock failed")
	}
	s.FocusBlock(1, EdgeStart)

	s.HandleRemoteText("# Title\n\nbody A")
	s.HandleRemoteText("# Title\n\nbody B")
	s.BlurBlock()

	if got, want := s.Document(), "# Title\n\nbody B"; got != want {
		t.Fatalf("Document() = %q, want the latest remote %q", got, want)
	}
	if got, want := changes, 1; got != want {
		t.Fatalf("OnChange fired %d times, want %d", got, want)
	}
	if got, want := timers.fire(), 0; got != want {
		t.Fatalf("%d stale timers fired", got)
	}
}

func TestSession_LocalEdit_DropsMatchingPendingRemote(t *testing.T) {
	var changes int
	s, _, timers := newTestSession(t, "# A\n\nhello", Options{
		ChunkTarget: 4,
		OnChange:    func() { changes++ },
	})
	if _, _, ok := s.MountBlock(s.Blocks()[1].ID); !ok {
		t.Fatalf("MountBlock failed")
	}
	s.FocusBlock(1, EdgeStart)
	s.HandleRemoteText("# A\n\nhello world")
	if !s.PendingRemote() {
		t.Fatalf("remote change not deferred")
	}

	// The editor types the same words the remote carries.
	s.ReplaceBlockMarkdown(1, "hello world")

	if s.PendingRemote() {
		t.Fatalf("pending merge kept after the local edit produced the same text")
	}
	if got, want := timers.fire(), 0; got != want {
		t.Fatalf("%d timers fired after the pending merge was dropped", got)
	}
	if got, want := s.Document(), "# A\n\nhello world"; got != want {
		t.Fatalf("Document() = %q, want %q", got, want)
	}
	if got, want := changes, 0; got != want {
		t.Fatalf("OnChange fired %d times, want %d", got, want)
	}
}

func TestSession_HandleRemoteText_MergesConcurrentEdits(t *testing.T) {
	s, clock, _ := newTestSession(t, "start middle end", Options{})
	s.ReplaceBlockMarkdown(0, "start! middle end")
	clock.Advance(DefaultIdleThreshold)

	s.HandleRemoteText("start middle end?")

	if got, want := s.Document(), "start! middle end?"; got != want {
		t.Fatalf("Document() = %q, want both edits in %q", got, want)
	}
}

func TestSession_HandleRemoteText_RefreshesMountedTrees(t *testing.T) {
	s, _, _ := newTestSession(t, "# Title\n\nbody", Options{ChunkTarget: 8})
	ids := []string{s.Blocks()[0].ID, s.Blocks()[1].ID}
	title, _, ok := s.MountBlock(ids[0])
	if !ok {
		t.Fatalf("MountBlock failed")
	}
	bodyBefore, _, ok := s.MountBlock(ids[1])
	if !ok {
		t.Fatalf("MountBlock failed")
	}

	s.HandleRemoteText("# Title\n\nbody text")

	bodyAfter, v, ok := s.MountBlock(ids[1])
	if !ok {
		t.Fatalf("rewritten block unmountable")
	}
	if bodyAfter == bodyBefore {
		t.Fatalf("rewritten block kept its stale tree")
	}
	if got, want := v, 1; got != want {
		t.Fatalf("rewritten block version = %d, want %d", got, want)
	}
	titleAfter, v, ok := s.MountBlock(ids[0])
	if !ok {
		t.Fatalf("untouched block unmountable")
	}
	if titleAfter != title {
		t.Fatalf("untouched block re-parsed")
	}
	if got, want := v, 0; got != want {
		t.Fatalf("untouched block version = %d, want %d", got, want)
	}
}

func TestSession_RemoteMerge_RestoresSelectionOffsets(t *testing.T) {
	s, _, _ := newTestSession(t, "# Title\n\nbody", Options{
		ChunkTarget:             8,
		AllowRemoteWhileFocused: true,
	})
	if _, _, ok := s.MountBlock(s.Blocks()[1].ID); !ok {
		t.Fatalf("MountBlock failed")
	}
	s.SetSelectionAtOffset(1, 2)

	// The remote prepends a new heading block.
	s.HandleRemoteText("## New\n\n# Title\n\nbody")

	// The caret stays at the same global offset, which now lands in the
	// shifted block layout.
	gr, ok := s.SelectionGlobalRange()
	if !ok {
		t.Fatalf("selection lost across the merge")
	}
	if got, want := gr, (GlobalRange{Start: 11, End: 11}); got != want {
		t.Fatalf("SelectionGlobalRange() = %+v, want %+v", got, want)
	}
	index, _, ok := s.Selection()
	if !ok || index != 1 {
		t.Fatalf("Selection() index = %d, want %d", index, 1)
	}
}

func TestSession_Save_DebouncesCommits(t *testing.T) {
	var commits []string
	s, _, timers := newTestSession(t, "# A\n\nbody", Options{
		ChunkTarget: 4,
		Commit:      func(text string) error { commits = append(commits, text); return nil },
	})

	s.ReplaceBlockMarkdown(1, "body v2")
	s.ReplaceBlockMarkdown(1, "body v3")

	if got, want := timers.fire(), 1; got != want {
		t.Fatalf("fired %d timers, want the one surviving debounce", got)
	}
	if got, want := len(commits), 1; got != want {
		t.Fatalf("commits = %d, want %d", got, want)
	}
	if got, want := commits[0], "# A\n\nbody v3"; got != want {
		t.Fatalf("committed %q, want %q", got, want)
	}
	if err := s.LastSaveError(); err != nil {
		t.Fatalf("LastSaveError() = %v", err)
	}

	// Editing back to the committed text arms a save that then skips.
	s.ReplaceBlockMarkdown(1, "body v4")
	s.ReplaceBlockMarkdown(1, "body v3")
	timers.fire()
	if got, want := len(commits), 1; got != want {
		t.Fatalf("commits = %d after no net change, want %d", got, want)
	}
}

func TestSession_Save_FailureKeepsBaseline(t *testing.T) {
	var calls int
	fail := true
	s, _, timers := newTestSession(t, "body", Options{
		Commit: func(string) error {
			calls++
			if fail {
				return errors.New("store offline")
			}
			return nil
		},
	})
	s.ReplaceBlockMarkdown(0, "body edited")

	timers.fire()

	if got, want := calls, 1; got != want {
		t.Fatalf("commit calls = %d, want %d", got, want)
	}
	if err := s.LastSaveError(); err == nil {
		t.Fatalf("LastSaveError() = nil after a failed commit")
	}

	// The baseline did not advance, so the next flush retries the same text.
	fail = false
	s.Flush()
	if got, want := calls, 2; got != want {
		t.Fatalf("commit calls = %d, want a retry making %d", got, want)
	}
	if err := s.LastSaveError(); err != nil {
		t.Fatalf("LastSaveError() = %v after recovery", err)
	}

	// Committed now; a further flush has nothing to do.
	s.Flush()
	if got, want := calls, 2; got != want {
		t.Fatalf("commit calls = %d, want %d", got, want)
	}
}

func TestSession_Flush_CommitsWithoutWaiting(t *testing.T) {
	var commits []string
	s, _, timers := newTestSession(t, "body", Options{
		Commit: func(text string) error { commits = append(commits, text); return nil },
	})
	s.ReplaceBlockMarkdown(0, "body edited")

	s.Flush()

	if got, want := len(commits), 1; got != want {
		t.Fatalf("commits = %d, want %d", got, want)
	}
	if got, want := commits[0], "body edited"; got != want {
		t.Fatalf("committed %q, want %q", got, want)
	}
	if got, want := timers.fire(), 0; got != want {
		t.Fatalf("%d stale save timers fired after Flush", got)
	}
}
