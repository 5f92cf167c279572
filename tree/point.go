package tree

import "github.com/stanza-md/stanza/internal/grapheme"

// Point addresses a character position inside a tree: a child-index path to a
// leaf plus a byte offset within that leaf's text. The zero Point addresses
// the document start of an empty tree.
type Point struct {
	Path   []int
	Offset int
}

// Equal reports whether two points address the same position.
func (p Point) Equal(q Point) bool {
	if len(p.Path) != len(q.Path) || p.Offset != q.Offset {
		return false
	}
	for i := range p.Path {
		if p.Path[i] != q.Path[i] {
			return false
		}
	}
	return true
}

// clonePath copies a path so stored points do not alias caller slices.
func clonePath(path []int) []int {
	if len(path) == 0 {
		return nil
	}
	return append([]int(nil), path...)
}

// ComparePoints orders two points in document order: -1 when a precedes b,
// 0 when equal, 1 when a follows b. Paths compare lexicographically; a parent
// precedes its descendants.
func ComparePoints(a, b Point) int {
	n := len(a.Path)
	if len(b.Path) < n {
		n = len(b.Path)
	}
	for i := 0; i < n; i++ {
		if a.Path[i] < b.Path[i] {
			return -1
		}
		if a.Path[i] > b.Path[i] {
			return 1
		}
	}
	if len(a.Path) != len(b.Path) {
		if len(a.Path) < len(b.Path) {
			return -1
		}
		return 1
	}
	if a.Offset < b.Offset {
		return -1
	}
	if a.Offset > b.Offset {
		return 1
	}
	return 0
}

// Start returns the point at the document start of the tree.
func (t *Tree) Start() Point {
	if path, _, ok := t.FirstLeaf(); ok {
		return Point{Path: path}
	}
	return Point{}
}

// End returns the point at the document end of the tree.
func (t *Tree) End() Point {
	if path, leaf, ok := t.LastLeaf(); ok {
		return Point{Path: path, Offset: len(leaf.Text)}
	}
	return Point{}
}

// PointForOffset resolves a byte offset in the block markdown to an exact
// point. It succeeds only when the offset lies within some leaf's span
// (boundaries included); offsets that fall between leaves, inside syntax that
// has no leaf (fence lines, markers), report ok=false.
func (t *Tree) PointForOffset(off int) (Point, bool) {
	var found Point
	ok := false
	t.leafVisit(func(path []int, leaf *Node) bool {
		if leaf.Span.Start < 0 || off < leaf.Span.Start || off > leaf.Span.End {
			return true
		}
		rel := off - leaf.Span.Start
		if rel > len(leaf.Text) {
			rel = len(leaf.Text)
		}
		found = Point{Path: clonePath(path), Offset: grapheme.SnapLeft(leaf.Text, rel)}
		ok = true
		return false
	})
	return found, ok
}

// NearestPoint resolves a byte offset to the closest addressable point. It
// always succeeds on a tree with at least one leaf; on an empty tree it
// returns the zero point. Ties between two equally distant leaves go to the
// earlier one.
func (t *Tree) NearestPoint(off int) Point {
	if p, ok := t.PointForOffset(off); ok {
		return p
	}
	best := Point{}
	bestDist := -1
	t.leafVisit(func(path []int, leaf *Node) bool {
		if leaf.Span.Start < 0 {
			return true
		}
		var dist, rel int
		switch {
		case off < leaf.Span.Start:
			dist, rel = leaf.Span.Start-off, 0
		case off > leaf.Span.End:
			dist, rel = off-leaf.Span.End, len(leaf.Text)
		default:
			dist, rel = 0, off-leaf.Span.Start
			if rel > len(leaf.Text) {
				rel = len(leaf.Text)
			}
		}
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			best = Point{Path: clonePath(path), Offset: grapheme.SnapLeft(leaf.Text, rel)}
		}
		return true
	})
	return best
}

// OffsetForPoint maps a point back to a byte offset in the block markdown.
// The point's offset is clamped into the addressed leaf; ok=false when the
// path does not address a leaf.
func (t *Tree) OffsetForPoint(p Point) (int, bool) {
	n, ok := t.NodeAt(p.Path)
	if !ok || !n.IsLeaf() || n.Span.Start < 0 {
		return 0, false
	}
	off := p.Offset
	if off < 0 {
		off = 0
	}
	if off > len(n.Text) {
		off = len(n.Text)
	}
	return n.Span.Start + grapheme.SnapLeft(n.Text, off), true
}

// ClampPoint returns p when it addresses a valid position, or the nearest
// valid point otherwise. Used to re-anchor selections after a tree is
// replaced.
func (t *Tree) ClampPoint(p Point) Point {
	if n, ok := t.NodeAt(p.Path); ok && n.IsLeaf() && n.Span.Start >= 0 {
		off := p.Offset
		if off < 0 {
			off = 0
		}
		if off > len(n.Text) {
			off = len(n.Text)
		}
		return Point{Path: clonePath(p.Path), Offset: grapheme.SnapLeft(n.Text, off)}
	}
	return t.Start()
}
