package markdown

import (
	"strconv"
	"strings"

	"github.com/stanza-md/stanza/tree"
)

// Render serializes a tree back to markdown. Output is canonical: ATX
// headings, asterisk emphasis, dash bullets. Text content and code bodies
// come through verbatim, and line breaks between leaves are re-emitted from
// the tree's source.
func Render(t *tree.Tree) string {
	if t == nil || t.Root == nil {
		return ""
	}
	var parts []string
	for _, c := range t.Root.Children {
		parts = append(parts, renderBlock(c, t.Source))
	}
	return strings.Join(parts, "\n\n")
}

func renderBlock(n *tree.Node, src string) string {
	switch n.Kind {
	case tree.KindHeading:
		level := n.Level
		if level < 1 {
			level = 1
		}
		if level > 6 {
			level = 6
		}
		body := strings.ReplaceAll(renderInlines(n, src), "\n", " ")
		if body == "" {
			return strings.Repeat("#", level)
		}
		return strings.Repeat("#", level) + " " + body
	case tree.KindParagraph:
		return renderInlines(n, src)
	case tree.KindCodeBlock:
		return renderCode(n)
	case tree.KindBlockquote:
		var inner []string
		for _, c := range n.Children {
			inner = append(inner, renderBlock(c, src))
		}
		return quoteLines(strings.Join(inner, "\n\n"))
	case tree.KindList:
		return renderList(n, src)
	case tree.KindListItem:
		var inner []string
		for _, c := range n.Children {
			inner = append(inner, renderBlock(c, src))
		}
		return strings.Join(inner, "\n\n")
	case tree.KindHTMLBlock:
		return leafLines(n)
	case tree.KindThematicBreak:
		if n.Text != "" {
			return n.Text
		}
		return "---"
	default:
		if n.IsLeaf() {
			return n.Text
		}
		return renderInlines(n, src)
	}
}

func renderCode(n *tree.Node) string {
	body := leafLines(n)
	ch := byte('`')
	if strings.Contains(n.Info, "`") {
		ch = '~'
	}
	size := 3
	if run := longestRun(body, ch); run >= size {
		size = run + 1
	}
	fence := strings.Repeat(string(ch), size)
	if body == "" {
		return fence + n.Info + "\n" + fence
	}
	return fence + n.Info + "\n" + body + "\n" + fence
}

func renderList(n *tree.Node, src string) string {
	joiner := "\n"
	if !n.Tight {
		joiner = "\n\n"
	}
	num := n.Level
	if n.Ordered && num < 0 {
		num = 1
	}
	var items []string
	for _, item := range n.Children {
		var blocks []string
		for _, b := range item.Children {
			blocks = append(blocks, renderBlock(b, src))
		}
		inner := strings.Join(blocks, joiner)
		var head string
		if n.Ordered {
			sep := ". "
			if n.Info == ")" {
				sep = ") "
			}
			head = strconv.Itoa(num) + sep
			num++
		} else {
			marker := "-"
			switch n.Info {
			case "*", "+":
				marker = n.Info
			}
			head = marker + " "
		}
		items = append(items, hangIndent(inner, head))
	}
	return strings.Join(items, joiner)
}

// hangIndent prefixes the first line with head and later non-blank lines
// with matching indentation.
func hangIndent(s, head string) string {
	pad := strings.Repeat(" ", len(head))
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if i == 0 {
			lines[i] = head + l
		} else if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}

func quoteLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l == "" {
			lines[i] = ">"
		} else {
			lines[i] = "> " + l
		}
	}
	return strings.Join(lines, "\n")
}

// leafLines joins a node's leaf texts with line breaks, reproducing
// line-per-leaf content such as code bodies and HTML blocks.
func leafLines(n *tree.Node) string {
	if n.IsLeaf() {
		return n.Text
	}
	var parts []string
	var walk func(c *tree.Node)
	walk = func(c *tree.Node) {
		if c.IsLeaf() {
			parts = append(parts, c.Text)
			return
		}
		for _, ch := range c.Children {
			walk(ch)
		}
	}
	for _, c := range n.Children {
		walk(c)
	}
	return strings.Join(parts, "\n")
}

// longestRun returns the length of the longest run of ch in s.
func longestRun(s string, ch byte) int {
	best, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] != ch {
			run = 0
			continue
		}
		run++
		if run > best {
			best = run
		}
	}
	return best
}

// renderInlines serializes a block's inline children. Whitespace between
// located leaves is re-emitted from the source, which preserves soft and
// hard line breaks and escape backslashes without modeling them as nodes.
func renderInlines(n *tree.Node, src string) string {
	r := &inlineRenderer{src: src, prevEnd: -1}
	if n.Span.Start >= 0 {
		r.prevEnd = n.Span.Start
	}
	r.walkChildren(n)
	return r.sb.String()
}

type inlineRenderer struct {
	sb      strings.Builder
	src     string
	prevEnd int
}

func (r *inlineRenderer) walkChildren(n *tree.Node) {
	for _, c := range n.Children {
		r.walk(c)
	}
}

func (r *inlineRenderer) walk(n *tree.Node) {
	switch n.Kind {
	case tree.KindText:
		if len(n.Children) > 0 {
			r.walkChildren(n)
			return
		}
		r.gap(n.Span.Start)
		r.sb.WriteString(n.Text)
		if n.Span.End > r.prevEnd {
			r.prevEnd = n.Span.End
		}
	case tree.KindEmphasis:
		r.wrap(n, "*")
	case tree.KindStrong:
		r.wrap(n, "**")
	case tree.KindCodeSpan:
		r.codeSpan(n)
	case tree.KindLink:
		r.gap(subtreeSpan(n).Start)
		r.sb.WriteString("[")
		r.walkChildren(n)
		r.sb.WriteString("](" + n.Info + ")")
	case tree.KindImage:
		r.gap(subtreeSpan(n).Start)
		r.sb.WriteString("![")
		r.walkChildren(n)
		r.sb.WriteString("](" + n.Info + ")")
	default:
		r.walkChildren(n)
	}
}

func (r *inlineRenderer) wrap(n *tree.Node, marker string) {
	r.gap(subtreeSpan(n).Start)
	r.sb.WriteString(marker)
	r.walkChildren(n)
	r.sb.WriteString(marker)
}

func (r *inlineRenderer) codeSpan(n *tree.Node) {
	r.gap(subtreeSpan(n).Start)
	sub := &inlineRenderer{src: r.src, prevEnd: -1}
	if sp := subtreeSpan(n); sp.Start >= 0 {
		sub.prevEnd = sp.Start
	}
	sub.walkChildren(n)
	inner := sub.sb.String()
	size := 1
	if run := longestRun(inner, '`'); run >= size {
		size = run + 1
	}
	tick := strings.Repeat("`", size)
	pad := ""
	if strings.HasPrefix(inner, "`") || strings.HasSuffix(inner, "`") {
		pad = " "
	}
	r.sb.WriteString(tick + pad + inner + pad + tick)
	if sub.prevEnd > r.prevEnd {
		r.prevEnd = sub.prevEnd
	}
}

// gap re-emits the source text between the previous leaf and the one
// starting at next when that text is pure whitespace or a lone escape
// backslash; marker characters stay structural. A gap spanning a line break
// inside a container collapses to a newline.
func (r *inlineRenderer) gap(next int) {
	if next < 0 || r.prevEnd < 0 || next <= r.prevEnd || next > len(r.src) {
		return
	}
	between := r.src[r.prevEnd:next]
	switch {
	case strings.TrimSpace(between) == "":
		r.sb.WriteString(between)
	case between == "\\":
		r.sb.WriteString(between)
	case strings.ContainsRune(between, '\n'):
		r.sb.WriteString("\n")
	}
	r.prevEnd = next
}
