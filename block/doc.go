// Package block maintains the chunked form of a document: an ordered list
// of bounded-size markdown blocks whose join reproduces the full text.
//
// The package provides the offset arithmetic between global document
// positions and per-block positions, content signatures for block-level
// diffing, and the chunker that splits markdown into blocks and re-chunks
// only the edited span on change.
package block
