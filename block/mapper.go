package block

import (
	"strings"

	"github.com/stanza-md/stanza/internal/grapheme"
)

// Offset addresses a local position inside the block array.
type Offset struct {
	Index  int // block array index
	Offset int // byte offset within that block's normalized markdown
}

// Position is a zero-based line and column pair in a text. Columns count
// grapheme clusters rather than bytes so they match what an editor shows.
type Position struct {
	Line int
	Col  int
}

// GlobalIndexForBlockOffset maps a block-local offset to an offset in the
// joined document. Index and offset are clamped into range, so any input
// resolves to a valid document offset.
func GlobalIndexForBlockOffset(blocks []Block, index, offset int) int {
	if len(blocks) == 0 {
		return 0
	}
	if index < 0 {
		index = 0
	} else if index >= len(blocks) {
		index = len(blocks) - 1
	}
	global := 0
	for i := 0; i < index; i++ {
		global += len(Normalize(blocks[i].Markdown)) + len(Separator)
	}
	n := len(Normalize(blocks[index].Markdown))
	if offset < 0 {
		offset = 0
	} else if offset > n {
		offset = n
	}
	return global + offset
}

// BlockOffsetForGlobalIndex maps an offset in the joined document to a
// block-local offset. Offsets inside a separator snap to the start of the
// following block; out-of-range offsets resolve to the nearest document
// edge rather than erroring.
func BlockOffsetForGlobalIndex(blocks []Block, global int) Offset {
	if len(blocks) == 0 {
		return Offset{}
	}
	if global < 0 {
		global = 0
	}
	rest := global
	for i, b := range blocks {
		n := len(Normalize(b.Markdown))
		if rest <= n || i == len(blocks)-1 {
			if rest > n {
				rest = n
			}
			return Offset{Index: i, Offset: rest}
		}
		rest -= n + len(Separator)
		if rest < 0 {
			return Offset{Index: i + 1}
		}
	}
	return Offset{}
}

// PositionForOffset converts a flat offset into text to a line and column
// pair. Offsets inside a grapheme cluster snap to the cluster start.
func PositionForOffset(text string, off int) Position {
	if off < 0 {
		off = 0
	} else if off > len(text) {
		off = len(text)
	}
	off = grapheme.SnapLeft(text, off)
	line := strings.Count(text[:off], "\n")
	start := strings.LastIndexByte(text[:off], '\n') + 1
	return Position{Line: line, Col: grapheme.Count(text[start:off])}
}

// OffsetForPosition converts a line and column pair back to a flat offset.
// Lines past the end resolve to len(text); columns past the end of their
// line resolve to the line end.
func OffsetForPosition(text string, pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	start := 0
	for l := 0; l < pos.Line; l++ {
		nl := strings.IndexByte(text[start:], '\n')
		if nl < 0 {
			return len(text)
		}
		start += nl + 1
	}
	end := len(text)
	if nl := strings.IndexByte(text[start:], '\n'); nl >= 0 {
		end = start + nl
	}
	if pos.Col <= 0 {
		return start
	}
	return start + grapheme.ClusterOffset(text[start:end], pos.Col)
}
