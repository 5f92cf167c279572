package engine

import (
	"go.uber.org/zap"

	"github.com/stanza-md/stanza/block"
	"github.com/stanza-md/stanza/tree"
)

// Edge names which end of a block a focus request lands on.
type Edge uint8

const (
	EdgeStart Edge = iota
	EdgeEnd
)

func (e Edge) String() string {
	if e == EdgeEnd {
		return "end"
	}
	return "start"
}

// Range is a directed selection inside one block's tree. Anchor is the
// fixed end, Focus the moving one; a caret has Anchor == Focus.
type Range struct {
	Anchor tree.Point
	Focus  tree.Point
}

// GlobalRange is a normalized selection span in joined-document offsets,
// Start <= End.
type GlobalRange struct {
	Start int
	End   int
}

type selectionState struct {
	active  bool
	index   int
	r       Range
	clipped bool
}

// pendingSelection is a deferred placement request for a block that is not
// mounted yet. One slot; the latest request wins; consumed on mount.
type pendingSelection struct {
	blockID  string
	edge     Edge
	offset   int
	byOffset bool
	spanEnd  bool // cross-block span: focus extends to the block end
}

// Selection returns the authoritative selection: the block index it lives
// in and its range. ok is false when no block is focused.
func (s *Session) Selection() (index int, r Range, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sel.active || s.sel.index >= len(s.blocks) {
		return 0, Range{}, false
	}
	return s.sel.index, s.sel.r, true
}

// FocusBlock places a caret at one edge of a block. If the block is not
// mounted the placement is recorded as pending, to be consumed when the
// block mounts, and the window is asked to scroll the block into view.
func (s *Session) FocusBlock(index int, at Edge) {
	s.mu.Lock()
	scroll := -1
	if len(s.blocks) > 0 {
		index = clampIndex(index, len(s.blocks))
		b := s.blocks[index]
		if mb, ok := s.mounted[b.ID]; ok {
			p := mb.tree.Start()
			if at == EdgeEnd {
				p = mb.tree.End()
			}
			s.activateLocked(index, Range{Anchor: p, Focus: p})
		} else {
			s.pending = &pendingSelection{blockID: b.ID, edge: at}
			s.sel = selectionState{}
			s.cross = nil
			scroll = index
			s.log.Debug("focus deferred until mount", zap.Int("block", index))
		}
	}
	s.mu.Unlock()
	s.scrollIntoView(scroll)
}

// BlurBlock clears the selection. Leaving a block ends the typing session,
// so a deferred remote change applies immediately rather than waiting out
// the idle window.
func (s *Session) BlurBlock() {
	s.mu.Lock()
	s.sel = selectionState{}
	s.pending = nil
	s.cross = nil
	applied := false
	if s.remoteQueued {
		s.stopIdleLocked()
		text := s.remoteText
		s.remoteQueued = false
		s.remoteText = ""
		applied = s.mergeRemoteLocked(text)
	}
	s.mu.Unlock()
	if applied {
		s.notifyChange()
	}
}

// SetSelectionAtOffset places a caret at a markdown offset within one
// block, snapping to the nearest addressable point.
func (s *Session) SetSelectionAtOffset(index, offset int) {
	s.mu.Lock()
	scroll := s.setCaretLocked(index, offset, nil)
	s.mu.Unlock()
	s.scrollIntoView(scroll)
}

// SetSelectionAtPosition places a caret at a zero-based line/column
// position in the joined document.
func (s *Session) SetSelectionAtPosition(pos block.Position) {
	s.mu.Lock()
	scroll := -1
	if len(s.blocks) > 0 {
		off := block.OffsetForPosition(s.doc, pos)
		bo := block.BlockOffsetForGlobalIndex(s.blocks, off)
		scroll = s.setCaretLocked(bo.Index, bo.Offset, nil)
	}
	s.mu.Unlock()
	s.scrollIntoView(scroll)
}

// SelectPositionRange selects the span between two line/column positions
// in the joined document.
func (s *Session) SelectPositionRange(start, end block.Position) {
	s.mu.Lock()
	gs := block.OffsetForPosition(s.doc, start)
	ge := block.OffsetForPosition(s.doc, end)
	scroll := s.selectGlobalLocked(gs, ge)
	s.mu.Unlock()
	s.scrollIntoView(scroll)
}

// SelectGlobalRange selects the span between two joined-document offsets.
// A span crossing block boundaries is clipped to the block it starts in
// for display, while the full span stays authoritative and is reported by
// SelectionGlobalRange until the next selection change or document
// mutation.
func (s *Session) SelectGlobalRange(start, end int) {
	s.mu.Lock()
	scroll := s.selectGlobalLocked(start, end)
	s.mu.Unlock()
	s.scrollIntoView(scroll)
}

func (s *Session) selectGlobalLocked(start, end int) (scroll int) {
	if len(s.blocks) == 0 {
		return -1
	}
	if start > end {
		start, end = end, start
	}
	boS := block.BlockOffsetForGlobalIndex(s.blocks, start)
	boE := block.BlockOffsetForGlobalIndex(s.blocks, end)
	if boS.Index == boE.Index {
		return s.setRangeLocked(boS.Index, boS.Offset, boE.Offset)
	}
	span := &GlobalRange{Start: start, End: end}
	scroll = s.setCaretLocked(boS.Index, boS.Offset, span)
	s.log.Debug("cross-block selection clipped",
		zap.Int("start_block", boS.Index),
		zap.Int("end_block", boE.Index))
	return scroll
}

// setCaretLocked places a caret at a block-local offset. A non-nil span
// marks a clipped cross-block selection: the display range extends to the
// block end and the span is retained as authoritative.
func (s *Session) setCaretLocked(index, offset int, span *GlobalRange) (scroll int) {
	if len(s.blocks) == 0 {
		return -1
	}
	index = clampIndex(index, len(s.blocks))
	b := s.blocks[index]
	mb, ok := s.mounted[b.ID]
	if !ok {
		s.pending = &pendingSelection{blockID: b.ID, offset: offset, byOffset: true, spanEnd: span != nil}
		s.sel = selectionState{}
		s.cross = span
		s.log.Debug("selection deferred until mount", zap.Int("block", index))
		return index
	}
	pt := mb.tree.NearestPoint(offset)
	r := Range{Anchor: pt, Focus: pt}
	if span != nil {
		r.Focus = mb.tree.End()
	}
	s.activateLocked(index, r)
	s.cross = span
	return -1
}

func (s *Session) setRangeLocked(index, startOff, endOff int) (scroll int) {
	b := s.blocks[index]
	mb, ok := s.mounted[b.ID]
	if !ok {
		// Deferred placements carry a single point; the range collapses.
		s.pending = &pendingSelection{blockID: b.ID, offset: startOff, byOffset: true}
		s.sel = selectionState{}
		s.cross = nil
		return index
	}
	s.activateLocked(index, Range{
		Anchor: mb.tree.NearestPoint(startOff),
		Focus:  mb.tree.NearestPoint(endOff),
	})
	return -1
}

// ExtendSelectionTo moves the focus of the current selection to a new
// point in the same block, as a shift-click does. A focus outside the
// selected span extends from the far end; a focus inside keeps the longer
// side, breaking ties toward the edge that was not the previous focus.
func (s *Session) ExtendSelectionTo(f tree.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sel.active || s.sel.index >= len(s.blocks) {
		return
	}
	mb, ok := s.mounted[s.blocks[s.sel.index].ID]
	if !ok {
		return
	}
	t := mb.tree
	f = t.ClampPoint(f)
	lo, hi := s.sel.r.Anchor, s.sel.r.Focus
	if tree.ComparePoints(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	var anchor tree.Point
	switch {
	case tree.ComparePoints(f, lo) < 0:
		anchor = hi
	case tree.ComparePoints(f, hi) > 0:
		anchor = lo
	default:
		anchor = s.insideAnchorLocked(t, lo, hi, f)
	}
	s.activateLocked(s.sel.index, Range{Anchor: anchor, Focus: f})
}

// insideAnchorLocked picks the anchor for a focus landing inside the
// selected span: the end leaving the longer selection wins.
func (s *Session) insideAnchorLocked(t *tree.Tree, lo, hi, f tree.Point) tree.Point {
	loOff, ok1 := t.OffsetForPoint(lo)
	hiOff, ok2 := t.OffsetForPoint(hi)
	fOff, ok3 := t.OffsetForPoint(f)
	if !ok1 || !ok2 || !ok3 {
		return lo
	}
	switch {
	case fOff-loOff > hiOff-fOff:
		return lo
	case hiOff-fOff > fOff-loOff:
		return hi
	case hi.Equal(s.sel.r.Focus):
		return lo
	case lo.Equal(s.sel.r.Focus):
		return hi
	}
	return lo
}

// SelectionGlobalRange reports the selection as a normalized span of
// joined-document offsets. A retained cross-block span is reported whole;
// otherwise the block-local range maps through the block layout.
func (s *Session) SelectionGlobalRange() (GlobalRange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cross != nil {
		return *s.cross, true
	}
	if !s.sel.active || s.sel.index >= len(s.blocks) {
		return GlobalRange{}, false
	}
	t := s.treeForLocked(s.sel.index)
	aOff, aok := t.OffsetForPoint(s.sel.r.Anchor)
	fOff, fok := t.OffsetForPoint(s.sel.r.Focus)
	if !aok || !fok {
		return GlobalRange{}, false
	}
	ga := block.GlobalIndexForBlockOffset(s.blocks, s.sel.index, aOff)
	gf := block.GlobalIndexForBlockOffset(s.blocks, s.sel.index, fOff)
	if ga > gf {
		ga, gf = gf, ga
	}
	return GlobalRange{Start: ga, End: gf}, true
}

// DisplayedSelection returns the selection as the view should draw it.
// When the focused block has scrolled out of the mounted window the
// selection clips to the nearest mounted edge, and the next
// ReportViewSelection readback is ignored so the clip does not overwrite
// the authoritative selection.
func (s *Session) DisplayedSelection() (index int, r Range, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sel.active || s.sel.index >= len(s.blocks) {
		return 0, Range{}, false
	}
	w := s.opts.Window
	if w == nil {
		return s.sel.index, s.sel.r, true
	}
	lo, hi := w.MountedRange()
	if s.sel.index >= lo && s.sel.index <= hi {
		return s.sel.index, s.sel.r, true
	}
	target := lo
	atEnd := s.sel.index > hi
	if atEnd {
		target = hi
	}
	target = clampIndex(target, len(s.blocks))
	mb, mounted := s.mounted[s.blocks[target].ID]
	if !mounted {
		return 0, Range{}, false
	}
	p := mb.tree.Start()
	if atEnd {
		p = mb.tree.End()
	}
	s.sel.clipped = true
	s.log.Debug("selection clipped to window",
		zap.Int("block", s.sel.index),
		zap.Int("displayed", target))
	return target, Range{Anchor: p, Focus: p}, true
}

// ReportViewSelection feeds a selection observed in the view back into the
// session. The first readback after a clipped display is the clip itself
// and is dropped; any later report becomes the authoritative selection.
func (s *Session) ReportViewSelection(index int, r Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sel.clipped {
		s.sel.clipped = false
		return
	}
	if len(s.blocks) == 0 {
		return
	}
	index = clampIndex(index, len(s.blocks))
	mb, ok := s.mounted[s.blocks[index].ID]
	if !ok {
		return
	}
	r.Anchor = mb.tree.ClampPoint(r.Anchor)
	r.Focus = mb.tree.ClampPoint(r.Focus)
	s.activateLocked(index, r)
}

// activateLocked installs a block-local selection, superseding any pending
// placement and retained cross-block span.
func (s *Session) activateLocked(index int, r Range) {
	s.sel = selectionState{active: true, index: index, r: r}
	s.pending = nil
	s.cross = nil
}

// consumePendingLocked resolves a pending placement against a block that
// just mounted.
func (s *Session) consumePendingLocked(id string, index int, t *tree.Tree) {
	p := s.pending
	if p == nil || p.blockID != id {
		return
	}
	span := s.cross
	var pt tree.Point
	switch {
	case p.byOffset:
		pt = t.NearestPoint(p.offset)
	case p.edge == EdgeEnd:
		pt = t.End()
	default:
		pt = t.Start()
	}
	r := Range{Anchor: pt, Focus: pt}
	if p.spanEnd {
		r.Focus = t.End()
	}
	s.activateLocked(index, r)
	s.cross = span
	s.log.Debug("pending selection consumed", zap.Int("block", index))
}

func (s *Session) scrollIntoView(index int) {
	if index >= 0 && s.opts.Window != nil {
		s.opts.Window.ScrollIntoView(index)
	}
}
