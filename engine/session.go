package engine

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stanza-md/stanza/block"
	"github.com/stanza-md/stanza/markdown"
	"github.com/stanza-md/stanza/tree"
)

// Session owns one collaborative document: its block array, the
// authoritative selection, the mounted-tree registry, and the merge state.
// All entry points serialize on one mutex; timer callbacks re-enter
// through the same mutex.
type Session struct {
	mu sync.Mutex

	opts    Options
	chunker block.Chunker
	log     *zap.Logger

	doc      string // always equals block.Join(blocks)
	blocks   []block.Block
	baseline string // last text successfully committed outward
	saveErr  error

	mounted map[string]*mountedBlock
	sel     selectionState
	pending *pendingSelection
	cross   *GlobalRange // retained cross-block selection span

	lastLocalEdit time.Time
	remoteQueued  bool
	remoteText    string
	idleTimer     Timer
	saveTimer     Timer
}

type mountedBlock struct {
	tree    *tree.Tree
	version int
}

// NewSession chunks text into blocks and returns a session over them. The
// initial text counts as the committed baseline.
func NewSession(text string, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		opts:    opts,
		chunker: block.Chunker{Target: opts.ChunkTarget},
		log:     log,
		mounted: map[string]*mountedBlock{},
	}
	s.blocks = s.chunker.Split(text)
	s.doc = block.Join(s.blocks)
	s.baseline = s.doc
	return s
}

// Document returns the full joined markdown text.
func (s *Session) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Blocks returns a copy of the current block array.
func (s *Session) Blocks() []block.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]block.Block, len(s.blocks))
	copy(out, s.blocks)
	return out
}

// Close cancels any scheduled merge or save. Pending work is discarded;
// call Flush first to persist outstanding edits.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopIdleLocked()
	s.stopSaveLocked()
}

// MountBlock registers a block's tree in the mount registry, parsing it on
// first mount, and returns the tree with its current version. A pending
// selection targeting the block is consumed exactly once. ok is false when
// no block carries the given ID.
func (s *Session) MountBlock(id string) (t *tree.Tree, version int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.blockIndexByIDLocked(id)
	if !ok {
		return nil, 0, false
	}
	b := s.blocks[i]
	mb, mounted := s.mounted[id]
	if !mounted {
		mb = &mountedBlock{tree: markdown.Parse(b.Markdown), version: b.TreeVersion}
		s.mounted[id] = mb
	}
	s.consumePendingLocked(id, i, mb.tree)
	return mb.tree, mb.version, true
}

// UnmountBlock drops a block's tree from the registry. The authoritative
// selection is untouched; a selection in an unmounted block is clipped at
// display time instead.
func (s *Session) UnmountBlock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mounted, id)
}

// MountedTree returns the registered tree for a block ID.
func (s *Session) MountedTree(id string) (*tree.Tree, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mb, ok := s.mounted[id]
	if !ok {
		return nil, false
	}
	return mb.tree, true
}

// ReplaceBlockMarkdown applies a local edit to one block's markdown. The
// document re-chunks incrementally, surviving blocks keep their IDs, the
// selection re-anchors, and a debounced save is armed.
func (s *Session) ReplaceBlockMarkdown(index int, md string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.blocks) {
		return
	}
	s.replaceBlockLocked(index, block.Normalize(md), nil)
}

// ReplaceBlockTree applies a local edit expressed as an edited tree: the
// tree renders back to markdown and follows the same path as
// ReplaceBlockMarkdown, with the given tree adopted as the block's mounted
// tree.
func (s *Session) ReplaceBlockTree(index int, t *tree.Tree) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.blocks) || t == nil {
		return
	}
	s.replaceBlockLocked(index, block.Normalize(markdown.Render(t)), t)
}

func (s *Session) replaceBlockLocked(index int, norm string, edited *tree.Tree) {
	prevBlocks := s.blocks
	prevDoc := s.doc
	editedID := prevBlocks[index].ID

	parts := make([]string, len(prevBlocks))
	for i, b := range prevBlocks {
		parts[i] = block.Normalize(b.Markdown)
	}
	parts[index] = norm
	next := strings.Join(parts, block.Separator)

	s.lastLocalEdit = s.now()
	if next == prevDoc {
		return
	}

	snap, snapOK := s.captureSelectionLocked()
	s.blocks = s.chunker.SplitIncremental(prevDoc, next, prevBlocks)
	s.doc = block.Join(s.blocks)
	s.refreshMountedLocked(prevBlocks, editedID, norm, edited, false)
	if snapOK {
		s.restoreSelectionLocked(snap)
	} else {
		s.clampSelectionLocked()
	}
	s.previewPendingLocked()
	s.armSaveLocked()
	s.log.Debug("local edit applied",
		zap.Int("block", index),
		zap.Int("blocks", len(s.blocks)),
		zap.Int("doc_len", len(s.doc)))
}

// refreshMountedLocked reconciles the mount registry after the block array
// changed. Surviving blocks whose markdown changed get a TreeVersion bump,
// except the block the local editor itself just replaced, and their
// registered trees re-parse. Registry entries and the pending selection
// are dropped with their blocks.
func (s *Session) refreshMountedLocked(prevBlocks []block.Block, editedID, editedNorm string, edited *tree.Tree, remote bool) {
	prevByID := make(map[string]string, len(prevBlocks))
	for _, b := range prevBlocks {
		prevByID[b.ID] = block.Normalize(b.Markdown)
	}
	alive := make(map[string]bool, len(s.blocks))
	for i := range s.blocks {
		b := &s.blocks[i]
		alive[b.ID] = true
		prevNorm, existed := prevByID[b.ID]
		norm := block.Normalize(b.Markdown)
		if existed && prevNorm == norm {
			continue
		}
		if remote || (existed && (b.ID != editedID || norm != editedNorm)) {
			b.TreeVersion++
		}
		mb, mounted := s.mounted[b.ID]
		if !mounted {
			continue
		}
		if !remote && b.ID == editedID && edited != nil && norm == editedNorm {
			mb.tree = edited
		} else {
			mb.tree = markdown.Parse(b.Markdown)
		}
		mb.version = b.TreeVersion
	}
	for id := range s.mounted {
		if !alive[id] {
			delete(s.mounted, id)
		}
	}
	if s.pending != nil && !alive[s.pending.blockID] {
		s.pending = nil
		s.log.Debug("pending selection dropped with its block")
	}
}

// selSnapshot carries a selection across a document mutation as a pair of
// global offsets.
type selSnapshot struct {
	anchor int
	focus  int
}

func (s *Session) captureSelectionLocked() (selSnapshot, bool) {
	if !s.sel.active || s.sel.index >= len(s.blocks) {
		return selSnapshot{}, false
	}
	t := s.treeForLocked(s.sel.index)
	aOff, aok := t.OffsetForPoint(s.sel.r.Anchor)
	fOff, fok := t.OffsetForPoint(s.sel.r.Focus)
	if !aok || !fok {
		return selSnapshot{}, false
	}
	return selSnapshot{
		anchor: block.GlobalIndexForBlockOffset(s.blocks, s.sel.index, aOff),
		focus:  block.GlobalIndexForBlockOffset(s.blocks, s.sel.index, fOff),
	}, true
}

func (s *Session) restoreSelectionLocked(snap selSnapshot) {
	s.cross = nil
	if len(s.blocks) == 0 {
		s.sel = selectionState{}
		return
	}
	boA := block.BlockOffsetForGlobalIndex(s.blocks, snap.anchor)
	boF := block.BlockOffsetForGlobalIndex(s.blocks, snap.focus)
	if boA.Index != boF.Index {
		// The ends landed in different blocks; collapse to the caret.
		boA = boF
	}
	t := s.treeForLocked(boF.Index)
	s.sel = selectionState{
		active: true,
		index:  boF.Index,
		r:      Range{Anchor: t.NearestPoint(boA.Offset), Focus: t.NearestPoint(boF.Offset)},
	}
}

// clampSelectionLocked repairs a selection whose points could not be
// carried across a mutation as offsets.
func (s *Session) clampSelectionLocked() {
	s.cross = nil
	if !s.sel.active {
		return
	}
	if s.sel.index >= len(s.blocks) {
		s.sel = selectionState{}
		return
	}
	t := s.treeForLocked(s.sel.index)
	s.sel.r.Anchor = t.ClampPoint(s.sel.r.Anchor)
	s.sel.r.Focus = t.ClampPoint(s.sel.r.Focus)
}

func (s *Session) blockIndexByIDLocked(id string) (int, bool) {
	for i, b := range s.blocks {
		if b.ID == id {
			return i, true
		}
	}
	return 0, false
}

// treeForLocked returns the mounted tree for a block, or a throwaway parse
// when the block is not mounted.
func (s *Session) treeForLocked(index int) *tree.Tree {
	if mb, ok := s.mounted[s.blocks[index].ID]; ok {
		return mb.tree
	}
	return markdown.Parse(s.blocks[index].Markdown)
}

func (s *Session) now() time.Time {
	if s.opts.Now != nil {
		return s.opts.Now()
	}
	return time.Now()
}

func (s *Session) newTimer(d time.Duration, fn func()) Timer {
	if s.opts.Timers != nil {
		return s.opts.Timers(d, fn)
	}
	return afterFunc(d, fn)
}

func (s *Session) notifyChange() {
	if s.opts.OnChange != nil {
		s.opts.OnChange()
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
