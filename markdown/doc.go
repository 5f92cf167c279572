// Package markdown adapts goldmark to the two shapes the engine consumes.
//
// Segment cuts a whole document into top-level fragments for the chunker;
// Parse builds the editable tree for a single block. Both keep source text
// recoverable byte for byte: fragments are line-aligned slices of the input,
// and tree leaves carry spans back into the block markdown.
package markdown
