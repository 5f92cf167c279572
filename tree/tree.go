// Package tree implements the structured, editable representation of one
// block's markdown.
//
// A Tree is produced by an external parser (see the markdown package) and is
// addressed by Points: a child-index path to a leaf plus a byte offset within
// that leaf's text. Leaf spans index into the block markdown the tree was
// parsed from, which is what makes offset<->point resolution possible without
// re-serializing.
package tree

// Kind identifies the structural role of a node.
type Kind uint8

const (
	KindDocument Kind = iota
	KindHeading
	KindParagraph
	KindCodeBlock
	KindBlockquote
	KindList
	KindListItem
	KindHTMLBlock
	KindThematicBreak
	KindEmphasis
	KindStrong
	KindCodeSpan
	KindLink
	KindImage
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindHeading:
		return "heading"
	case KindParagraph:
		return "paragraph"
	case KindCodeBlock:
		return "code"
	case KindBlockquote:
		return "blockquote"
	case KindList:
		return "list"
	case KindListItem:
		return "list-item"
	case KindHTMLBlock:
		return "html"
	case KindThematicBreak:
		return "break"
	case KindEmphasis:
		return "emphasis"
	case KindStrong:
		return "strong"
	case KindCodeSpan:
		return "code-span"
	case KindLink:
		return "link"
	case KindImage:
		return "image"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range [Start, End) into Tree.Source.
type Span struct {
	Start int
	End   int
}

// Node is one structural unit. Leaves (no children) carry Text; their Span
// locates that text in the source markdown. A leaf with a negative Span start
// has no recoverable source position and is skipped by position resolution.
type Node struct {
	Kind     Kind
	Level    int    // heading level, list start number
	Info     string // code fence info string, link destination
	Ordered  bool   // list ordering
	Tight    bool   // list tightness
	Text     string // leaves only
	Span     Span
	Children []*Node
}

// IsLeaf reports whether n carries text directly.
func (n *Node) IsLeaf() bool { return n != nil && len(n.Children) == 0 }

// Tree is the parsed form of a single block's markdown.
type Tree struct {
	Root   *Node
	Source string
}

// NodeAt resolves a child-index path from the root. An empty path addresses
// the root itself.
func (t *Tree) NodeAt(path []int) (*Node, bool) {
	if t == nil || t.Root == nil {
		return nil, false
	}
	n := t.Root
	for _, idx := range path {
		if idx < 0 || idx >= len(n.Children) {
			return nil, false
		}
		n = n.Children[idx]
	}
	return n, true
}

// leafVisit walks leaves in document order, calling fn with each leaf and its
// path. Returning false stops the walk.
func (t *Tree) leafVisit(fn func(path []int, n *Node) bool) {
	if t == nil || t.Root == nil {
		return
	}
	var walk func(path []int, n *Node) bool
	walk = func(path []int, n *Node) bool {
		if n.IsLeaf() {
			return fn(path, n)
		}
		for i, c := range n.Children {
			child := append(append([]int(nil), path...), i)
			if !walk(child, c) {
				return false
			}
		}
		return true
	}
	walk(nil, t.Root)
}

// FirstLeaf returns the first leaf in document order.
func (t *Tree) FirstLeaf() (path []int, n *Node, ok bool) {
	t.leafVisit(func(p []int, leaf *Node) bool {
		path, n, ok = p, leaf, true
		return false
	})
	return path, n, ok
}

// LastLeaf returns the last leaf in document order.
func (t *Tree) LastLeaf() (path []int, n *Node, ok bool) {
	t.leafVisit(func(p []int, leaf *Node) bool {
		path, n, ok = p, leaf, true
		return true
	})
	return path, n, ok
}
