package markdown

import "testing"

func TestRender_RoundTripsCanonicalMarkdown(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{name: "heading", src: "# Hello"},
		{name: "subheading", src: "### Deep"},
		{name: "paragraph", src: "plain text here."},
		{name: "soft-break", src: "alpha\nbeta"},
		{name: "emphasis", src: "a *b* and **c** plus `d`"},
		{name: "link", src: "see [docs](https://example.com) now"},
		{name: "image", src: "![alt](img.png)"},
		{name: "fenced-code", src: "```go\nfunc main() {}\n```"},
		{name: "bare-fence", src: "```\nx\n```"},
		{name: "quote", src: "> quoted\n> lines"},
		{name: "bullet-list", src: "- one\n- two"},
		{name: "star-list", src: "* one\n* two"},
		{name: "ordered-list", src: "1. one\n2. two"},
		{name: "nested-list", src: "- a\n  - b"},
		{name: "loose-list", src: "- a\n\n- b"},
		{name: "thematic-break", src: "---"},
		{name: "html-block", src: "<div>\nhello\n</div>"},
		{name: "multi-block", src: "# T\n\nbody"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(Parse(tc.src)); got != tc.src {
				t.Fatalf("rendered=%q, want %q", got, tc.src)
			}
		})
	}
}

func TestRender_EmptyTree(t *testing.T) {
	if got := Render(Parse("")); got != "" {
		t.Fatalf("rendered=%q, want empty", got)
	}
	if got := Render(nil); got != "" {
		t.Fatalf("rendered nil=%q, want empty", got)
	}
}

func TestRender_EditedLeafSerializes(t *testing.T) {
	tr := Parse("# Hello")
	leaf, ok := tr.NodeAt([]int{0, 0})
	if !ok {
		t.Fatalf("missing heading leaf")
	}
	leaf.Text = "Changed"
	if got, want := Render(tr), "# Changed"; got != want {
		t.Fatalf("rendered=%q, want %q", got, want)
	}
}

func TestRender_CodeFenceGrowsPastBacktickRuns(t *testing.T) {
	tr := Parse("````\na ``` b\n````")
	if got, want := Render(tr), "````\na ``` b\n````"; got != want {
		t.Fatalf("rendered=%q, want %q", got, want)
	}
}
