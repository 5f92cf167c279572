package markdown

import (
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// docParser segments whole documents. GFM stays on so tables bound their own
// fragments instead of bleeding into neighboring paragraphs.
var docParser = goldmark.New(goldmark.WithExtensions(extension.GFM))

// FragmentKind classifies a top-level fragment of a document.
type FragmentKind uint8

const (
	FragmentText FragmentKind = iota // synthetic or unclassified lines
	FragmentHeading
	FragmentParagraph
	FragmentCode
	FragmentQuote
	FragmentList
	FragmentHTML
	FragmentBreak
	FragmentTable
)

func (k FragmentKind) String() string {
	switch k {
	case FragmentText:
		return "text"
	case FragmentHeading:
		return "heading"
	case FragmentParagraph:
		return "paragraph"
	case FragmentCode:
		return "code"
	case FragmentQuote:
		return "quote"
	case FragmentList:
		return "list"
	case FragmentHTML:
		return "html"
	case FragmentBreak:
		return "break"
	case FragmentTable:
		return "table"
	default:
		return "unknown"
	}
}

// Fragment is one top-level unit of a document. Markdown is a
// trailing-newline-trimmed, line-aligned slice of the source, so fragments
// joined back with blank lines reproduce their content byte for byte.
type Fragment struct {
	Kind     FragmentKind
	Markdown string
	Info     string // code fence info string
}

// Segment splits a markdown document into its top-level fragments. Every
// non-blank source line lands in exactly one fragment: lines the parser
// records no position for (fence lines, setext underlines, thematic breaks,
// link reference definitions) are recovered from the gaps between located
// nodes. A document with no content yields a single empty text fragment.
func Segment(src string) []Fragment {
	source := []byte(src)
	lines := splitLines(src)
	doc := docParser.Parser().Parse(text.NewReader(source))

	type piece struct {
		node        ast.Node
		first, last int
		known       bool
	}
	var pieces []piece
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		p := piece{node: n}
		if s, e, ok := nodeSpan(n); ok {
			p.first = lineAt(lines, s)
			p.last = p.first
			if e > s {
				p.last = lineAt(lines, e-1)
			}
			p.known = true
			if p.first > 0 && opensFenceAbove(n, lines, p.first) {
				p.first--
			}
			if next := p.last + 1; next < len(lines) &&
				fenceLine(lineText(src, lines[next])) && endsInFence(n, lines, p.last) {
				p.last = next
			}
			if next := p.last + 1; next < len(lines) &&
				setextUnderline(lineText(src, lines[next])) && endsInSetext(n, src, lines, p.last) {
				p.last = next
			}
		}
		pieces = append(pieces, p)
	}

	// Nodes with no recorded position claim the next run of non-blank lines
	// before the following located node.
	cursor := 0
	for i := range pieces {
		p := &pieces[i]
		if p.known {
			if p.last+1 > cursor {
				cursor = p.last + 1
			}
			continue
		}
		bound := len(lines)
		for j := i + 1; j < len(pieces); j++ {
			if pieces[j].known {
				bound = pieces[j].first
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
		p.first, p.last, p.known = start, end, true
		cursor = end + 1
	}

	claimed := make([]bool, len(lines))
	for _, p := range pieces {
		if !p.known {
			continue
		}
		for l := p.first; l <= p.last && l < len(lines); l++ {
			claimed[l] = true
		}
	}

	type span struct {
		first, last int
		kind        FragmentKind
		info        string
	}
	var spans []span
	for _, p := range pieces {
		if !p.known {
			continue
		}
		s := span{first: p.first, last: p.last, kind: fragmentKind(p.node)}
		if fc, ok := p.node.(*ast.FencedCodeBlock); ok && fc.Info != nil {
			s.info = string(fc.Info.Segment.Value(source))
		}
		spans = append(spans, s)
	}
	for l := 0; l < len(lines); {
		if claimed[l] || blankLine(src, lines[l]) {
			l++
			continue
		}
		run := span{first: l, last: l, kind: FragmentText}
		for l++; l < len(lines) && !claimed[l] && !blankLine(src, lines[l]); l++ {
			run.last = l
		}
		spans = append(spans, run)
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].first < spans[j].first })

	var frags []Fragment
	prevLast := -1
	for _, s := range spans {
		if s.first <= prevLast {
			s.first = prevLast + 1
		}
		if s.first > s.last {
			continue
		}
		prevLast = s.last
		md := src[lines[s.first].start:lines[s.last].end]
		if strings.TrimSpace(md) == "" {
			continue
		}
		frags = append(frags, Fragment{Kind: s.kind, Markdown: md, Info: s.info})
	}
	if len(frags) == 0 {
		return []Fragment{{Kind: FragmentText}}
	}
	return frags
}

func fragmentKind(n ast.Node) FragmentKind {
	switch n.(type) {
	case *ast.Heading:
		return FragmentHeading
	case *ast.Paragraph, *ast.TextBlock:
		return FragmentParagraph
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return FragmentCode
	case *ast.Blockquote:
		return FragmentQuote
	case *ast.List:
		return FragmentList
	case *ast.HTMLBlock:
		return FragmentHTML
	case *ast.ThematicBreak:
		return FragmentBreak
	case *east.Table:
		return FragmentTable
	default:
		return FragmentText
	}
}

// nodeSpan reports the byte range covered by the segments recorded anywhere
// in n's subtree. ok is false when the subtree records no positions at all,
// which happens for marker-only constructs.
func nodeSpan(n ast.Node) (start, end int, ok bool) {
	start, end = -1, -1
	add := func(s, e int) {
		if s < 0 || e < s {
			return
		}
		if start < 0 || s < start {
			start = s
		}
		if e > end {
			end = e
		}
	}
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if c.Type() == ast.TypeBlock {
			ls := c.Lines()
			for i := 0; i < ls.Len(); i++ {
				seg := ls.At(i)
				add(seg.Start, seg.Stop)
			}
		}
		switch t := c.(type) {
		case *ast.Text:
			add(t.Segment.Start, t.Segment.Stop)
		case *ast.RawHTML:
			for i := 0; i < t.Segments.Len(); i++ {
				seg := t.Segments.At(i)
				add(seg.Start, seg.Stop)
			}
		case *ast.FencedCodeBlock:
			if t.Info != nil {
				add(t.Info.Segment.Start, t.Info.Segment.Stop)
			}
		case *ast.HTMLBlock:
			if t.HasClosure() {
				add(t.ClosureLine.Start, t.ClosureLine.Stop)
			}
		}
		return ast.WalkContinue, nil
	})
	return start, end, start >= 0
}

// opensFenceAbove reports whether the span's first line is the first body
// line of a fence with no info string; the opening fence then sits one line
// above, invisible to nodeSpan.
func opensFenceAbove(n ast.Node, lines []lineSpan, first int) bool {
	found := false
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fc, ok := c.(*ast.FencedCodeBlock)
		if !ok || fc.Info != nil || fc.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		if lineAt(lines, fc.Lines().At(0).Start) == first {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

// endsInFence reports whether the span's last line belongs to a fenced code
// block, so the following line may be its closing fence.
func endsInFence(n ast.Node, lines []lineSpan, last int) bool {
	found := false
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fc, ok := c.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		end := -1
		if fc.Info != nil && fc.Info.Segment.Stop > end {
			end = fc.Info.Segment.Stop
		}
		ls := fc.Lines()
		for i := 0; i < ls.Len(); i++ {
			if s := ls.At(i); s.Stop > end {
				end = s.Stop
			}
		}
		if end > 0 && lineAt(lines, end-1) == last {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

// endsInSetext reports whether the span's last line is the final text line of
// a setext heading, so the following line is its underline.
func endsInSetext(n ast.Node, src string, lines []lineSpan, last int) bool {
	found := false
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := c.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		s, e, okSpan := nodeSpan(h)
		if !okSpan {
			return ast.WalkContinue, nil
		}
		lastLine := lineAt(lines, s)
		if e > s {
			lastLine = lineAt(lines, e-1)
		}
		if lastLine != last {
			return ast.WalkContinue, nil
		}
		if !atxLine(lineText(src, lines[lineAt(lines, s)])) {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

// atxLine reports whether a line is an ATX heading after stripping
// blockquote markers and indentation.
func atxLine(line string) bool {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '>') {
		i++
	}
	return i < len(line) && line[i] == '#'
}

// setextUnderline matches a setext underline, tolerating blockquote markers
// in front.
func setextUnderline(line string) bool {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '>') {
		i++
	}
	rest := strings.TrimRight(line[i:], " \t")
	if rest == "" {
		return false
	}
	ch := rest[0]
	if ch != '=' && ch != '-' {
		return false
	}
	for j := 1; j < len(rest); j++ {
		if rest[j] != ch {
			return false
		}
	}
	return true
}

// fenceLine matches a line that can close a code fence: optional blockquote
// markers and indent, then a run of three or more backticks or tildes.
func fenceLine(line string) bool {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '>') {
		i++
	}
	rest := line[i:]
	if len(rest) < 3 {
		return false
	}
	ch := rest[0]
	if ch != '`' && ch != '~' {
		return false
	}
	j := 0
	for j < len(rest) && rest[j] == ch {
		j++
	}
	return j >= 3 && strings.TrimSpace(rest[j:]) == ""
}

// lineSpan is one source line as [start, end) excluding the terminator.
type lineSpan struct {
	start int
	end   int
}

func splitLines(src string) []lineSpan {
	var lines []lineSpan
	start := 0
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			lines = append(lines, lineSpan{start: start, end: i})
			start = i + 1
		}
	}
	if start < len(src) {
		lines = append(lines, lineSpan{start: start, end: len(src)})
	}
	return lines
}

// lineAt returns the index of the line containing byte offset off. An offset
// at a line terminator belongs to the line it terminates.
func lineAt(lines []lineSpan, off int) int {
	lo, hi := 0, len(lines)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if off > lines[mid].end {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func lineText(src string, l lineSpan) string { return src[l.start:l.end] }

func blankLine(src string, l lineSpan) bool {
	return strings.TrimSpace(lineText(src, l)) == ""
}
