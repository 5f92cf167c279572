package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/stanza-md/stanza/tree"
)

// blockParser parses single blocks. Extensions stay off here so constructs
// without a tree shape survive as verbatim text leaves.
var blockParser = goldmark.New()

// Parse builds the editable tree for one block's markdown. Leaf spans index
// into src, which keeps offset and point resolution exact for unchanged
// text.
func Parse(src string) *tree.Tree {
	source := []byte(src)
	doc := blockParser.Parser().Parse(text.NewReader(source))
	root := &tree.Node{Kind: tree.KindDocument, Span: tree.Span{Start: 0, End: len(src)}}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		root.Children = append(root.Children, convertBlock(n, source))
	}
	t := &tree.Tree{Root: root, Source: src}
	recoverBareSpans(t, src)
	return t
}

func convertBlock(n ast.Node, source []byte) *tree.Node {
	switch t := n.(type) {
	case *ast.Heading:
		node := bareNode(tree.KindHeading)
		node.Level = t.Level
		cursor := blockStart(n)
		appendInlines(node, n, source, &cursor)
		setBlockSpan(node, n)
		return node
	case *ast.Paragraph, *ast.TextBlock:
		node := bareNode(tree.KindParagraph)
		cursor := blockStart(n)
		appendInlines(node, n, source, &cursor)
		setBlockSpan(node, n)
		return node
	case *ast.FencedCodeBlock:
		node := bareNode(tree.KindCodeBlock)
		if t.Info != nil {
			node.Info = string(t.Info.Segment.Value(source))
		}
		appendLineLeaves(node, t.Lines(), source)
		if len(node.Children) == 0 {
			at := -1
			if t.Info != nil {
				at = t.Info.Segment.Stop
			}
			leaf := bareNode(tree.KindText)
			leaf.Span = tree.Span{Start: at, End: at}
			node.Children = append(node.Children, leaf)
		}
		setBlockSpan(node, n)
		return node
	case *ast.CodeBlock:
		node := bareNode(tree.KindCodeBlock)
		appendLineLeaves(node, t.Lines(), source)
		setBlockSpan(node, n)
		return node
	case *ast.Blockquote:
		node := bareNode(tree.KindBlockquote)
		appendBlocks(node, n, source)
		setBlockSpan(node, n)
		return node
	case *ast.List:
		node := bareNode(tree.KindList)
		node.Ordered = t.IsOrdered()
		node.Level = t.Start
		node.Info = string(t.Marker)
		node.Tight = t.IsTight
		appendBlocks(node, n, source)
		setBlockSpan(node, n)
		return node
	case *ast.ListItem:
		node := bareNode(tree.KindListItem)
		appendBlocks(node, n, source)
		setBlockSpan(node, n)
		return node
	case *ast.HTMLBlock:
		node := bareNode(tree.KindHTMLBlock)
		appendLineLeaves(node, t.Lines(), source)
		if t.HasClosure() {
			appendSegmentLeaf(node, t.ClosureLine, source)
		}
		setBlockSpan(node, n)
		return node
	case *ast.ThematicBreak:
		node := bareNode(tree.KindThematicBreak)
		node.Text = "---"
		return node
	default:
		node := bareNode(tree.KindParagraph)
		if n.Type() == ast.TypeBlock {
			appendLineLeaves(node, n.Lines(), source)
		}
		setBlockSpan(node, n)
		return node
	}
}

func appendBlocks(parent *tree.Node, n ast.Node, source []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		parent.Children = append(parent.Children, convertBlock(c, source))
	}
}

func appendInlines(parent *tree.Node, n ast.Node, source []byte, cursor *int) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if child := convertInline(c, source, cursor); child != nil {
			parent.Children = append(parent.Children, child)
		}
	}
}

func convertInline(n ast.Node, source []byte, cursor *int) *tree.Node {
	switch t := n.(type) {
	case *ast.Text:
		seg := t.Segment
		if seg.Stop > *cursor {
			*cursor = seg.Stop
		}
		leaf := bareNode(tree.KindText)
		leaf.Text = string(seg.Value(source))
		leaf.Span = tree.Span{Start: seg.Start, End: seg.Stop}
		return leaf
	case *ast.Emphasis:
		kind := tree.KindEmphasis
		if t.Level >= 2 {
			kind = tree.KindStrong
		}
		node := bareNode(kind)
		appendInlines(node, n, source, cursor)
		spanFromChildren(node)
		return node
	case *ast.CodeSpan:
		node := bareNode(tree.KindCodeSpan)
		appendInlines(node, n, source, cursor)
		spanFromChildren(node)
		return node
	case *ast.Link:
		node := bareNode(tree.KindLink)
		node.Info = linkInfo(t.Destination, t.Title)
		appendInlines(node, n, source, cursor)
		spanFromChildren(node)
		return node
	case *ast.Image:
		node := bareNode(tree.KindImage)
		node.Info = linkInfo(t.Destination, t.Title)
		appendInlines(node, n, source, cursor)
		spanFromChildren(node)
		return node
	case *ast.AutoLink:
		return locatedLeaf("<"+string(t.Label(source))+">", source, cursor)
	case *ast.RawHTML:
		leaf := bareNode(tree.KindText)
		var sb strings.Builder
		start, end := -1, -1
		for i := 0; i < t.Segments.Len(); i++ {
			seg := t.Segments.At(i)
			sb.Write(seg.Value(source))
			if start < 0 {
				start = seg.Start
			}
			end = seg.Stop
		}
		leaf.Text = sb.String()
		if start >= 0 {
			leaf.Span = tree.Span{Start: start, End: end}
			if end > *cursor {
				*cursor = end
			}
		}
		return leaf
	case *ast.String:
		return locatedLeaf(string(t.Value), source, cursor)
	default:
		node := bareNode(tree.KindText)
		appendInlines(node, n, source, cursor)
		if len(node.Children) > 0 {
			spanFromChildren(node)
		}
		return node
	}
}

func bareNode(k tree.Kind) *tree.Node {
	return &tree.Node{Kind: k, Span: tree.Span{Start: -1, End: -1}}
}

// locatedLeaf builds a text leaf for an inline whose position goldmark does
// not record, searching the source forward of the conversion cursor.
func locatedLeaf(value string, source []byte, cursor *int) *tree.Node {
	leaf := bareNode(tree.KindText)
	leaf.Text = value
	from := *cursor
	if from < 0 {
		from = 0
	}
	if from <= len(source) && value != "" {
		if idx := bytes.Index(source[from:], []byte(value)); idx >= 0 {
			start := from + idx
			leaf.Span = tree.Span{Start: start, End: start + len(value)}
			*cursor = leaf.Span.End
		}
	}
	return leaf
}

// appendLineLeaves adds one leaf per recorded line, terminator trimmed, so
// every leaf remains an exact slice of the source.
func appendLineLeaves(node *tree.Node, ls *text.Segments, source []byte) {
	for i := 0; i < ls.Len(); i++ {
		appendSegmentLeaf(node, ls.At(i), source)
	}
}

func appendSegmentLeaf(node *tree.Node, seg text.Segment, source []byte) {
	value := string(seg.Value(source))
	trimmed := strings.TrimRight(value, "\r\n")
	stop := seg.Stop - (len(value) - len(trimmed))
	leaf := bareNode(tree.KindText)
	leaf.Text = trimmed
	leaf.Span = tree.Span{Start: seg.Start, End: stop}
	node.Children = append(node.Children, leaf)
}

func blockStart(n ast.Node) int {
	if n.Type() != ast.TypeBlock {
		return -1
	}
	ls := n.Lines()
	if ls.Len() == 0 {
		return -1
	}
	return ls.At(0).Start
}

// setBlockSpan records the node's source extent: the parser's recorded lines
// when present, otherwise the extent of the converted children.
func setBlockSpan(node *tree.Node, n ast.Node) {
	if n.Type() == ast.TypeBlock {
		ls := n.Lines()
		if ls.Len() > 0 {
			node.Span = tree.Span{Start: ls.At(0).Start, End: ls.At(ls.Len() - 1).Stop}
			return
		}
	}
	spanFromChildren(node)
}

func spanFromChildren(node *tree.Node) {
	start, end := -1, -1
	for _, c := range node.Children {
		if c.Span.Start < 0 {
			continue
		}
		if start < 0 || c.Span.Start < start {
			start = c.Span.Start
		}
		if c.Span.End > end {
			end = c.Span.End
		}
	}
	if start >= 0 {
		node.Span = tree.Span{Start: start, End: end}
	}
}

// subtreeSpan is the extent of all located spans under n, including n
// itself. Start is negative when nothing in the subtree has a position.
func subtreeSpan(n *tree.Node) tree.Span {
	start, end := -1, -1
	var walk func(c *tree.Node)
	walk = func(c *tree.Node) {
		if c.Span.Start >= 0 {
			if start < 0 || c.Span.Start < start {
				start = c.Span.Start
			}
			if c.Span.End > end {
				end = c.Span.End
			}
		}
		for _, ch := range c.Children {
			walk(ch)
		}
	}
	walk(n)
	return tree.Span{Start: start, End: end}
}

// recoverBareSpans locates top-level nodes the parser records no position for
// (thematic breaks, empty fences, bare heading markers) by claiming the next
// unclaimed run of non-blank lines, mirroring the segmentation recovery.
func recoverBareSpans(t *tree.Tree, src string) {
	lines := splitLines(src)
	if len(lines) == 0 {
		return
	}
	children := t.Root.Children
	known := make([]tree.Span, len(children))
	for i, c := range children {
		known[i] = subtreeSpan(c)
	}
	cursor := 0
	for i, c := range children {
		if known[i].Start >= 0 {
			lastLine := lineAt(lines, known[i].Start)
			if known[i].End > known[i].Start {
				lastLine = lineAt(lines, known[i].End-1)
			}
			if next := lastLine + 1; next < len(lines) &&
				fenceLine(lineText(src, lines[next])) && endsInCodeAt(c, known[i].End) {
				lastLine = next
			} else if next < len(lines) &&
				setextUnderline(lineText(src, lines[next])) && endsInHeadingAt(c, src, lines, known[i].End) {
				lastLine = next
			}
			if lastLine+1 > cursor {
				cursor = lastLine + 1
			}
			continue
		}
		bound := len(lines)
		for j := i + 1; j < len(children); j++ {
			if known[j].Start >= 0 {
				bound = lineAt(lines, known[j].Start)
				break
			}
		}
		start := cursor
		for start < bound && blankLine(src, lines[start]) {
			start++
		}
		if start >= bound {
			continue
		}
		end := start
		for end+1 < bound && !blankLine(src, lines[end+1]) {
			end++
		}
		span := tree.Span{Start: lines[start].start, End: lines[end].end}
		switch {
		case c.Kind == tree.KindThematicBreak:
			c.Text = src[span.Start:span.End]
			c.Span = span
		case len(c.Children) == 0:
			c.Text = ""
			c.Span = tree.Span{Start: span.End, End: span.End}
		default:
			c.Span = span
		}
		cursor = end + 1
	}
}

// endsInCodeAt reports whether a code block in n's subtree ends exactly at
// byte offset end, meaning the following line may be its closing fence.
func endsInCodeAt(n *tree.Node, end int) bool {
	found := false
	var walk func(c *tree.Node)
	walk = func(c *tree.Node) {
		if found {
			return
		}
		if c.Kind == tree.KindCodeBlock && subtreeSpan(c).End == end {
			found = true
			return
		}
		for _, ch := range c.Children {
			walk(ch)
		}
	}
	walk(n)
	return found
}

// endsInHeadingAt reports whether a setext heading's text in n's subtree
// ends exactly at byte offset end, meaning the following line is its
// underline.
func endsInHeadingAt(n *tree.Node, src string, lines []lineSpan, end int) bool {
	found := false
	var walk func(c *tree.Node)
	walk = func(c *tree.Node) {
		if found {
			return
		}
		if c.Kind == tree.KindHeading {
			if sp := subtreeSpan(c); sp.Start >= 0 && sp.End == end &&
				!atxLine(lineText(src, lines[lineAt(lines, sp.Start)])) {
				found = true
				return
			}
		}
		for _, ch := range c.Children {
			walk(ch)
		}
	}
	walk(n)
	return found
}

func linkInfo(dest, title []byte) string {
	if len(title) == 0 {
		return string(dest)
	}
	return string(dest) + " \"" + string(title) + "\""
}
