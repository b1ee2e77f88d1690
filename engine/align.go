package engine

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Align computes a minimal-edit alignment of two line sequences and returns
// it as an ordered list of spans covering both sequences fully. Concatenating
// the source slices of Equal/Delete/Replace spans reconstructs source;
// Equal/Insert/Replace does the same for target. Output is deterministic:
// when several minimal alignments exist the matcher prefers the longest
// earliest matching block.
func Align(source, target []string) []Span {
	ops := difflib.NewMatcher(source, target).GetOpCodes()
	spans := make([]Span, 0, len(ops))
	for _, op := range ops {
		spans = append(spans, Span{
			Tag: opTag(op.Tag),
			I1:  op.I1,
			I2:  op.I2,
			J1:  op.J1,
			J2:  op.J2,
		})
	}
	return spans
}

func opTag(b byte) Tag {
	switch b {
	case 'e':
		return TagEqual
	case 'i':
		return TagInsert
	case 'd':
		return TagDelete
	case 'r':
		return TagReplace
	}
	panic("engine: unknown opcode tag " + string(b))
}

// Ratio is the character-level similarity of two strings:
// twice the number of matching characters divided by the total length of
// both. Identical strings score 1.0, disjoint strings 0.0.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return difflib.NewMatcher(splitChars(a), splitChars(b)).Ratio()
}

func splitChars(s string) []string {
	chars := make([]string, 0, len(s))
	for _, r := range s {
		chars = append(chars, string(r))
	}
	return chars
}

// SplitLines splits text into lines, each retaining its trailing newline
// (mirrors splitting with keepends). The final fragment is kept even without
// a trailing newline. Empty input yields no lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			lines = append(lines, text)
			return lines
		}
		lines = append(lines, text[:idx+1])
		text = text[idx+1:]
		if text == "" {
			return lines
		}
	}
}
