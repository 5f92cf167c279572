package block

import (
	"strings"

	"github.com/stanza-md/stanza/markdown"
)

// DefaultTarget is the block size ceiling used when a Chunker does not set
// its own.
const DefaultTarget = 4000

// Chunker splits markdown into bounded blocks along structural boundaries.
// The zero value is ready to use.
type Chunker struct {
	// Target is the maximum block length in bytes. A single structural
	// unit longer than Target still becomes one oversized block; units
	// are never split across blocks.
	Target int
}

func (c Chunker) target() int {
	if c.Target <= 0 {
		return DefaultTarget
	}
	return c.Target
}

// Split chunks md into fresh blocks. The markdown is segmented into
// top-level fragments and consecutive fragments pack greedily into blocks
// no longer than Target. An empty document yields one empty block, so a
// document always has at least one.
func (c Chunker) Split(md string) []Block {
	texts := c.pack(md)
	blocks := make([]Block, len(texts))
	for i, t := range texts {
		blocks[i] = NewBlock(t)
	}
	return blocks
}

func (c Chunker) pack(md string) []string {
	target := c.target()
	frags := markdown.Segment(md)
	var texts []string
	cur := ""
	for i, f := range frags {
		if i == 0 {
			cur = f.Markdown
			continue
		}
		if len(cur)+len(Separator)+len(f.Markdown) > target {
			texts = append(texts, cur)
			cur = f.Markdown
			continue
		}
		cur += Separator + f.Markdown
	}
	return append(texts, cur)
}

// SplitIncremental re-chunks only the edited span of a document. The
// common prefix and suffix of prev and next map onto whole reusable blocks
// of prevBlocks and just the differing middle is re-split; replaced middle
// blocks hand their IDs to their successors where the content survives.
// When the edit cannot be bounded it falls back to a full Split.
//
// prev must equal Join(prevBlocks); callers maintain that invariant.
func (c Chunker) SplitIncremental(prev, next string, prevBlocks []Block) []Block {
	if prev == next && len(prevBlocks) > 0 {
		return prevBlocks
	}
	if len(prevBlocks) == 0 {
		return c.Split(next)
	}

	pre := commonPrefixLen(prev, next)
	suf := commonSuffixLen(prev, next)
	if pre+suf > len(prev) {
		suf = len(prev) - pre
	}
	if pre+suf > len(next) {
		suf = len(next) - pre
	}

	// A block is reusable only when it sits entirely inside the matched
	// span together with the separator binding it to the middle.
	keepHead, midStart := 0, 0
	for keepHead < len(prevBlocks) {
		n := len(Normalize(prevBlocks[keepHead].Markdown))
		boundary := midStart + n + len(Separator)
		if boundary > pre {
			break
		}
		keepHead++
		midStart = boundary
	}
	keepTail, tailLen := 0, 0
	for keepTail < len(prevBlocks)-keepHead {
		n := len(Normalize(prevBlocks[len(prevBlocks)-1-keepTail].Markdown))
		span := tailLen + len(Separator) + n
		if span > suf {
			break
		}
		keepTail++
		tailLen = span
	}

	midEndPrev := len(prev) - tailLen
	midEndNext := len(next) - tailLen
	if midStart > midEndPrev || midStart > midEndNext {
		return c.Split(next)
	}

	var middle []Block
	if midNext := next[midStart:midEndNext]; strings.TrimSpace(midNext) != "" {
		middle = reconcileIDs(prevBlocks[keepHead:len(prevBlocks)-keepTail], c.Split(midNext))
	}

	out := make([]Block, 0, keepHead+len(middle)+keepTail)
	out = append(out, prevBlocks[:keepHead]...)
	out = append(out, middle...)
	out = append(out, prevBlocks[len(prevBlocks)-keepTail:]...)
	if len(out) == 0 {
		return []Block{NewBlock("")}
	}
	return out
}

// reconcileIDs carries identities from replaced blocks onto their fresh
// successors: equal content keeps its block outright, and a delete run
// paired with an insert run of the same length keeps IDs positionally, so
// a pure text edit keeps its block ID.
func reconcileIDs(replaced, fresh []Block) []Block {
	if len(replaced) == 0 || len(fresh) == 0 {
		return fresh
	}
	ops := DiffSignatures(blockSignatures(replaced), blockSignatures(fresh))
	for i, op := range ops {
		switch {
		case op.Op == OpEqual:
			for j := 0; j < op.Count; j++ {
				fresh[op.NextIndex+j].ID = replaced[op.PrevIndex+j].ID
				fresh[op.NextIndex+j].TreeVersion = replaced[op.PrevIndex+j].TreeVersion
			}
		case op.Op == OpDelete && i+1 < len(ops) && ops[i+1].Op == OpInsert && ops[i+1].Count == op.Count:
			ins := ops[i+1]
			for j := 0; j < op.Count; j++ {
				fresh[ins.NextIndex+j].ID = replaced[op.PrevIndex+j].ID
				fresh[ins.NextIndex+j].TreeVersion = replaced[op.PrevIndex+j].TreeVersion
			}
		}
	}
	return fresh
}

// blockSignatures fingerprints whole blocks by their exact normalized
// text. Chunk identity is textual, so no whitespace collapsing applies at
// this level; a formatting edit still re-pairs through the delete/insert
// path in reconcileIDs.
func blockSignatures(blocks []Block) []Signature {
	sigs := make([]Signature, len(blocks))
	for i, b := range blocks {
		payload := Normalize(b.Markdown)
		sigs[i] = Signature{Kind: "block", Payload: payload, Hash: hashPayload(payload)}
	}
	return sigs
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func commonSuffixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[len(a)-1-i] == b[len(b)-1-i] {
		i++
	}
	return i
}
