package block

import (
	"strings"

	"github.com/google/uuid"
)

// Separator joins consecutive blocks into the full document text.
const Separator = "\n\n"

// Block is a contiguous chunk of the document with a stable identity. The
// ID is assigned once when the block is created and survives pure text
// edits, so registries keyed by ID stay valid while the user types.
// TreeVersion increments whenever the block's content is replaced from
// outside a mounted editor, telling the editor to rebuild its tree.
type Block struct {
	ID          string
	Markdown    string
	TreeVersion int
}

// NewBlock returns a block with a fresh identity.
func NewBlock(md string) Block {
	return Block{ID: uuid.NewString(), Markdown: md}
}

// Normalize strips the trailing newlines a block never stores. All offset
// arithmetic in this package runs over normalized text.
func Normalize(md string) string {
	return strings.TrimRight(md, "\n")
}

// Join reassembles the full document from its blocks.
func Join(blocks []Block) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = Normalize(b.Markdown)
	}
	return strings.Join(parts, Separator)
}
