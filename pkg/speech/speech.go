// Package speech segments assistant replies into sentences so synthesis can
// start on the first sentence while the rest of the reply is still being
// processed. Splitting is boundary-rune based with a guard for decimal
// numbers and clock times, which matter in fee amounts and schedules.
package speech

import (
	"strings"
	"unicode"

	"google.golang.org/api/iterator"
)

// isBoundary reports whether r ends a sentence.
func isBoundary(r rune) bool {
	switch r {
	case '.', '?', '!', '\n':
		return true
	}
	return false
}

// SplitSentences splits text into trimmed sentences. The terminating
// punctuation stays attached to its sentence; text after the last boundary
// is returned as a final sentence. A '.' between two digits is part of a
// number (a 3.5 CGPA, Rs 1.5 million), not a boundary.
func SplitSentences(text string) []string {
	rs := []rune(text)
	var out []string
	start := 0
	for i, r := range rs {
		if !isBoundary(r) {
			continue
		}
		if r == '.' && i > 0 && i+1 < len(rs) && unicode.IsDigit(rs[i-1]) && unicode.IsDigit(rs[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(rs[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(rs[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// SentenceIterator yields the sentences of one reply in order.
type SentenceIterator struct {
	sentences []string
	pos       int
}

// Sentences returns an iterator over the sentences of text.
func Sentences(text string) *SentenceIterator {
	return &SentenceIterator{sentences: SplitSentences(text)}
}

// Next returns the next sentence, or iterator.Done after the last one.
func (it *SentenceIterator) Next() (string, error) {
	if it.pos >= len(it.sentences) {
		return "", iterator.Done
	}
	s := it.sentences[it.pos]
	it.pos++
	return s, nil
}
