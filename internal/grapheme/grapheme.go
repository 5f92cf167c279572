// Package grapheme wraps uniseg with the byte-offset helpers the tree
// resolvers need: offsets that land inside a multi-byte cluster must snap to
// a cluster boundary before they become selection points.
package grapheme

import (
	"unicode"

	"github.com/rivo/uniseg"
)

// Count returns the number of grapheme clusters in text.
func Count(text string) int {
	if text == "" {
		return 0
	}
	g := uniseg.NewGraphemes(text)
	n := 0
	for g.Next() {
		n++
	}
	return n
}

// SnapLeft returns the largest cluster boundary <= off.
// Offsets outside [0, len(text)] clamp to the nearest document edge.
func SnapLeft(text string, off int) int {
	if off <= 0 {
		return 0
	}
	if off >= len(text) {
		return len(text)
	}
	g := uniseg.NewGraphemes(text)
	boundary := 0
	for g.Next() {
		_, end := g.Positions()
		if end > off {
			return boundary
		}
		boundary = end
	}
	return boundary
}

// SnapRight returns the smallest cluster boundary >= off.
func SnapRight(text string, off int) int {
	if off <= 0 {
		return 0
	}
	if off >= len(text) {
		return len(text)
	}
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		_, end := g.Positions()
		if end >= off {
			return end
		}
	}
	return len(text)
}

// NextBoundary returns the cluster boundary after off, or len(text) when off
// is already at or past the last boundary.
func NextBoundary(text string, off int) int {
	off = SnapLeft(text, off)
	if off >= len(text) {
		return len(text)
	}
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		start, end := g.Positions()
		if start == off {
			return end
		}
		if start > off {
			return start
		}
	}
	return len(text)
}

// PrevBoundary returns the cluster boundary before off, or 0 when off is at
// or before the first boundary.
func PrevBoundary(text string, off int) int {
	off = SnapLeft(text, off)
	if off <= 0 {
		return 0
	}
	g := uniseg.NewGraphemes(text)
	prev := 0
	for g.Next() {
		_, end := g.Positions()
		if end >= off {
			return prev
		}
		prev = end
	}
	return prev
}

// ClusterOffset returns the byte offset just past the first n clusters of
// text, clamped to len(text).
func ClusterOffset(text string, n int) int {
	if n <= 0 {
		return 0
	}
	g := uniseg.NewGraphemes(text)
	off := 0
	for g.Next() {
		_, off = g.Positions()
		n--
		if n == 0 {
			break
		}
	}
	return off
}

// IsSpace reports whether all runes in cluster are Unicode whitespace.
func IsSpace(cluster string) bool {
	if cluster == "" {
		return false
	}
	for _, r := range cluster {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
