package interpret

import (
	"slices"
	"strings"
	"unicode"
)

// Segment splits a lower-cased transcript into item phrases.
// Commas and periods end a phrase, except a period between two digits ("1.5").
// A conjunction ends a phrase only when it stands as its own word.
// Empty phrases are dropped; empty input yields no segments.
func Segment(text string, conjunctions []string) []string {
	segments := make([]string, 0)
	for _, clause := range splitPunctuation(text) {
		var words []string
		flush := func() {
			if len(words) > 0 {
				segments = append(segments, strings.Join(words, " "))
				words = words[:0]
			}
		}
		for _, w := range strings.Fields(clause) {
			if slices.Contains(conjunctions, w) {
				flush()
				continue
			}
			words = append(words, w)
		}
		flush()
	}
	return segments
}

func splitPunctuation(text string) []string {
	runes := []rune(text)
	var clauses []string
	start := 0
	for i, r := range runes {
		switch r {
		case ',':
		case '.':
			if i > 0 && i < len(runes)-1 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
				continue
			}
		default:
			continue
		}
		clauses = append(clauses, string(runes[start:i]))
		start = i + 1
	}
	return append(clauses, string(runes[start:]))
}
