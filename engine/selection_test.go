package engine

import (
	"testing"

	"github.com/stanza-md/stanza/block"
	"github.com/stanza-md/stanza/tree"
)

// mountAll registers every block's tree and returns them by index.
func mountAll(t *testing.T, s *Session) []*tree.Tree {
	t.Helper()
	var trees []*tree.Tree
	for _, b := range s.Blocks() {
		tr, _, ok := s.MountBlock(b.ID)
		if !ok {
			t.Fatalf("MountBlock(%q) failed", b.ID)
		}
		trees = append(trees, tr)
	}
	return trees
}

func pointOffset(t *testing.T, tr *tree.Tree, p tree.Point) int {
	t.Helper()
	off, ok := tr.OffsetForPoint(p)
	if !ok {
		t.Fatalf("OffsetForPoint(%+v) not resolvable", p)
	}
	return off
}

func TestSession_FocusBlock_PlacesCaretAtEdge(t *testing.T) {
	s, _, _ := newTestSession(t, "# Title\n\nbody", Options{ChunkTarget: 8})
	trees := mountAll(t, s)

	s.FocusBlock(0, EdgeStart)
	index, r, ok := s.Selection()
	if !ok || index != 0 {
		t.Fatalf("Selection() = %d, %v; want block 0", index, ok)
	}
	if got, want := r.Focus, trees[0].Start(); !got.Equal(want) {
		t.Fatalf("caret = %+v, want %+v", got, want)
	}
	if !r.Anchor.Equal(r.Focus) {
		t.Fatalf("focus placed a non-collapsed selection %+v", r)
	}

	s.FocusBlock(1, EdgeEnd)
	index, r, ok = s.Selection()
	if !ok || index != 1 {
		t.Fatalf("Selection() = %d, %v; want block 1", index, ok)
	}
	if got, want := r.Focus, trees[1].End(); !got.Equal(want) {
		t.Fatalf("caret = %+v, want %+v", got, want)
	}
}

func TestSession_BlurBlock_ClearsSelection(t *testing.T) {
	s, _, _ := newTestSession(t, "body", Options{})
	mountAll(t, s)
	s.FocusBlock(0, EdgeStart)

	s.BlurBlock()

	if _, _, ok := s.Selection(); ok {
		t.Fatalf("selection survived blur")
	}
}

func TestSession_SetSelectionAtOffset_SnapsIntoBlock(t *testing.T) {
	s, _, _ := newTestSession(t, "# Title\n\nbody text", Options{ChunkTarget: 8})
	mountAll(t, s)

	s.SetSelectionAtOffset(1, 5)

	gr, ok := s.SelectionGlobalRange()
	if !ok {
		t.Fatalf("no selection after SetSelectionAtOffset")
	}
	// Block 1 starts at global offset 9.
	if got, want := gr, (GlobalRange{Start: 14, End: 14}); got != want {
		t.Fatalf("SelectionGlobalRange() = %+v, want %+v", got, want)
	}
}

func TestSession_SetSelectionAtPosition(t *testing.T) {
	s, _, _ := newTestSession(t, "one\ntwo\n\nthree", Options{ChunkTarget: 7})
	mountAll(t, s)

	s.SetSelectionAtPosition(block.Position{Line: 3, Col: 2})

	index, _, ok := s.Selection()
	if !ok || index != 1 {
		t.Fatalf("Selection() = %d, %v; want block 1", index, ok)
	}
	gr, ok := s.SelectionGlobalRange()
	if !ok {
		t.Fatalf("no global range")
	}
	if got, want := gr, (GlobalRange{Start: 11, End: 11}); got != want {
		t.Fatalf("SelectionGlobalRange() = %+v, want %+v", got, want)
	}
}

func TestSession_SelectPositionRange_SameBlock(t *testing.T) {
	s, _, _ := newTestSession(t, "one\ntwo\n\nthree", Options{ChunkTarget: 7})
	mountAll(t, s)

	s.SelectPositionRange(block.Position{Line: 0, Col: 1}, block.Position{Line: 1, Col: 2})

	index, _, ok := s.Selection()
	if !ok || index != 0 {
		t.Fatalf("Selection() = %d, %v; want block 0", index, ok)
	}
	gr, ok := s.SelectionGlobalRange()
	if !ok {
		t.Fatalf("no global range")
	}
	if got, want := gr, (GlobalRange{Start: 1, End: 6}); got != want {
		t.Fatalf("SelectionGlobalRange() = %+v, want %+v", got, want)
	}
}

func TestSession_SelectGlobalRange_CrossBlockClips(t *testing.T) {
	s, _, _ := newTestSession(t, "# Title\n\nbody text", Options{ChunkTarget: 8})
	trees := mountAll(t, s)

	s.SelectGlobalRange(2, 13)

	index, r, ok := s.Selection()
	if !ok || index != 0 {
		t.Fatalf("Selection() = %d, %v; want clip into block 0", index, ok)
	}
	if got, want := pointOffset(t, trees[0], r.Anchor), 2; got != want {
		t.Fatalf("clipped anchor offset = %d, want %d", got, want)
	}
	if got, want := r.Focus, trees[0].End(); !got.Equal(want) {
		t.Fatalf("clipped focus = %+v, want block end %+v", got, want)
	}
	gr, ok := s.SelectionGlobalRange()
	if !ok {
		t.Fatalf("no global range")
	}
	if got, want := gr, (GlobalRange{Start: 2, End: 13}); got != want {
		t.Fatalf("SelectionGlobalRange() = %+v, want the full span %+v", got, want)
	}

	// Any later selection change forgets the clipped span.
	s.SetSelectionAtOffset(0, 3)
	gr, ok = s.SelectionGlobalRange()
	if !ok {
		t.Fatalf("no global range after caret move")
	}
	if got, want := gr, (GlobalRange{Start: 3, End: 3}); got != want {
		t.Fatalf("SelectionGlobalRange() = %+v, want %+v", got, want)
	}
}

func TestSession_SelectGlobalRange_CrossBlockClearedByEdit(t *testing.T) {
	s, _, _ := newTestSession(t, "# Title\n\nbody text", Options{ChunkTarget: 8})
	mountAll(t, s)
	s.SelectGlobalRange(2, 13)

	s.ReplaceBlockMarkdown(1, "body text!")

	gr, ok := s.SelectionGlobalRange()
	if !ok {
		t.Fatalf("no global range after edit")
	}
	if got, want := gr, (GlobalRange{Start: 2, End: 7}); got != want {
		t.Fatalf("SelectionGlobalRange() = %+v, want the block-local span %+v", got, want)
	}
}

func TestSession_SelectGlobalRange_SwapsReversedBounds(t *testing.T) {
	s, _, _ := newTestSession(t, "body text", Options{})
	mountAll(t, s)

	s.SelectGlobalRange(6, 2)

	gr, ok := s.SelectionGlobalRange()
	if !ok {
		t.Fatalf("no global range")
	}
	if got, want := gr, (GlobalRange{Start: 2, End: 6}); got != want {
		t.Fatalf("SelectionGlobalRange() = %+v, want %+v", got, want)
	}
}

func TestSession_ExtendSelectionTo(t *testing.T) {
	cases := []struct {
		name       string
		anchor     int
		focus      int
		extendTo   int
		wantAnchor int
		wantFocus  int
	}{
		{name: "before span anchors far end", anchor: 5, focus: 10, extendTo: 3, wantAnchor: 10, wantFocus: 3},
		{name: "after span anchors near end", anchor: 5, focus: 10, extendTo: 12, wantAnchor: 5, wantFocus: 12},
		{name: "inside keeps longer left side", anchor: 5, focus: 10, extendTo: 8, wantAnchor: 5, wantFocus: 8},
		{name: "inside keeps longer right side", anchor: 5, focus: 10, extendTo: 6, wantAnchor: 10, wantFocus: 6},
		{name: "tie extends away from previous focus", anchor: 4, focus: 10, extendTo: 7, wantAnchor: 4, wantFocus: 7},
		{name: "tie with reversed selection", anchor: 10, focus: 4, extendTo: 7, wantAnchor: 10, wantFocus: 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _, _ := newTestSession(t, "abcdefghijklmnop", Options{})
			trees := mountAll(t, s)
			tr := trees[0]
			s.ReportViewSelection(0, Range{
				Anchor: tr.NearestPoint(tc.anchor),
				Focus:  tr.NearestPoint(tc.focus),
			})

			s.ExtendSelectionTo(tr.NearestPoint(tc.extendTo))

			_, r, ok := s.Selection()
			if !ok {
				t.Fatalf("no selection after extend")
			}
			if got, want := pointOffset(t, tr, r.Anchor), tc.wantAnchor; got != want {
				t.Fatalf("anchor offset = %d, want %d", got, want)
			}
			if got, want := pointOffset(t, tr, r.Focus), tc.wantFocus; got != want {
				t.Fatalf("focus offset = %d, want %d", got, want)
			}
		})
	}
}

func TestSession_ExtendSelectionTo_NoSelection(t *testing.T) {
	s, _, _ := newTestSession(t, "body", Options{})
	trees := mountAll(t, s)

	s.ExtendSelectionTo(trees[0].NearestPoint(2))

	if _, _, ok := s.Selection(); ok {
		t.Fatalf("extend created a selection from nothing")
	}
}

func TestSession_DisplayedSelection_ClipsToWindow(t *testing.T) {
	w := &fakeWindow{lo: 0, hi: 3}
	s, _, _ := newTestSession(t, "alpha\n\nbravo\n\ncharlie\n\ndelta", Options{ChunkTarget: 5, Window: w})
	trees := mountAll(t, s)
	s.FocusBlock(3, EdgeStart)

	// The focused block scrolls out below the mounted window.
	w.lo, w.hi = 1, 2
	index, r, ok := s.DisplayedSelection()
	if !ok {
		t.Fatalf("no displayed selection")
	}
	if got, want := index, 2; got != want {
		t.Fatalf("displayed index = %d, want %d", got, want)
	}
	if got, want := r.Focus, trees[2].End(); !got.Equal(want) {
		t.Fatalf("displayed caret = %+v, want nearest edge %+v", got, want)
	}

	// The readback of the clip must not overwrite the real selection.
	s.ReportViewSelection(index, r)
	selIndex, _, ok := s.Selection()
	if !ok || selIndex != 3 {
		t.Fatalf("clip readback moved the selection to block %d", selIndex)
	}

	// A genuine user selection after that is adopted.
	s.ReportViewSelection(1, Range{Anchor: trees[1].Start(), Focus: trees[1].Start()})
	selIndex, _, ok = s.Selection()
	if !ok || selIndex != 1 {
		t.Fatalf("user readback ignored, selection at block %d", selIndex)
	}
}

func TestSession_DisplayedSelection_ClipsAboveWindow(t *testing.T) {
	w := &fakeWindow{lo: 0, hi: 3}
	s, _, _ := newTestSession(t, "alpha\n\nbravo\n\ncharlie\n\ndelta", Options{ChunkTarget: 5, Window: w})
	trees := mountAll(t, s)
	s.FocusBlock(0, EdgeEnd)

	w.lo, w.hi = 2, 3
	index, r, ok := s.DisplayedSelection()
	if !ok {
		t.Fatalf("no displayed selection")
	}
	if got, want := index, 2; got != want {
		t.Fatalf("displayed index = %d, want %d", got, want)
	}
	if got, want := r.Focus, trees[2].Start(); !got.Equal(want) {
		t.Fatalf("displayed caret = %+v, want nearest edge %+v", got, want)
	}
}

func TestSession_DisplayedSelection_InWindowPassesThrough(t *testing.T) {
	w := &fakeWindow{lo: 0, hi: 1}
	s, _, _ := newTestSession(t, "# Title\n\nbody", Options{ChunkTarget: 8, Window: w})
	mountAll(t, s)
	s.FocusBlock(1, EdgeStart)

	index, _, ok := s.DisplayedSelection()
	if !ok || index != 1 {
		t.Fatalf("DisplayedSelection() = %d, %v; want pass-through of block 1", index, ok)
	}

	// No clip happened, so a readback is adopted as usual.
	s.ReportViewSelection(0, Range{})
	selIndex, _, ok := s.Selection()
	if !ok || selIndex != 0 {
		t.Fatalf("readback not adopted, selection at block %d", selIndex)
	}
}
