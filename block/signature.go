package block

import (
	"encoding/binary"
	"hash/fnv"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/stanza-md/stanza/markdown"
)

// Signature fingerprints one fragment for block-level diffing. Payload is
// the fragment's normalized textual projection and Hash folds the payload
// with its length, which keeps accidental collisions between truncations
// of the same text unlikely.
type Signature struct {
	Kind    string
	Payload string
	Hash    uint64
}

// BuildSignature projects frag onto a Signature. Code and HTML fragments
// keep their raw text because formatting is significant there; everything
// else collapses whitespace runs so a reflowed paragraph keeps its
// fingerprint.
func BuildSignature(frag markdown.Fragment) Signature {
	payload := frag.Markdown
	switch frag.Kind {
	case markdown.FragmentCode, markdown.FragmentHTML:
	default:
		payload = strings.Join(strings.Fields(payload), " ")
	}
	return Signature{Kind: frag.Kind.String(), Payload: payload, Hash: hashPayload(payload)}
}

func hashPayload(payload string) uint64 {
	h := fnv.New64a()
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(len(payload)))
	_, _ = h.Write(b[:])
	_, _ = h.Write([]byte(payload))
	return h.Sum64()
}

// OpKind classifies one run in a signature diff.
type OpKind uint8

const (
	OpEqual OpKind = iota
	OpInsert
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpEqual:
		return "equal"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// SignatureOp is one run of a signature diff. Count signatures starting at
// PrevIndex (equal, delete) or NextIndex (equal, insert) form the run;
// taken in order, the ops visit every index on both sides exactly once.
type SignatureOp struct {
	Op        OpKind
	PrevIndex int
	NextIndex int
	Count     int
}

// DiffSignatures diffs two signature sequences at block granularity. Each
// distinct signature maps to a private-use-area rune and the two rune
// streams run through a generic text diff, which buys a structural diff
// for the cost of a string diff.
func DiffSignatures(prev, next []Signature) []SignatureOp {
	table := map[Signature]rune{}
	encode := func(sigs []Signature) []rune {
		rs := make([]rune, len(sigs))
		for i, s := range sigs {
			r, ok := table[s]
			if !ok {
				r = puaRune(len(table))
				table[s] = r
			}
			rs[i] = r
		}
		return rs
	}
	a := encode(prev)
	b := encode(next)

	dmp := diffmatchpatch.New()
	var ops []SignatureOp
	pi, ni := 0, 0
	for _, d := range dmp.DiffMainRunes(a, b, false) {
		count := utf8.RuneCountInString(d.Text)
		if count == 0 {
			continue
		}
		op := SignatureOp{PrevIndex: pi, NextIndex: ni, Count: count}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			op.Op = OpEqual
			pi += count
			ni += count
		case diffmatchpatch.DiffDelete:
			op.Op = OpDelete
			pi += count
		case diffmatchpatch.DiffInsert:
			op.Op = OpInsert
			ni += count
		}
		ops = append(ops, op)
	}
	return ops
}

// puaRune returns the i-th private-use-area code point, spilling into the
// supplementary planes when the BMP area runs out.
func puaRune(i int) rune {
	const bmp = 0xF8FF - 0xE000 + 1
	if i < bmp {
		return rune(0xE000 + i)
	}
	return rune(0xF0000 + i - bmp)
}
