// Package delta reconstructs streamed text from fragments that may be full
// replacements, plain deltas, or overlapping resends.
package delta

import (
	"strings"
	"unicode/utf8"
)

// MergeText folds incoming into existing and returns the new text.
//
// A fragment that extends existing replaces it, a fragment that existing
// already starts with is dropped, and otherwise the longest suffix of
// existing that is also a prefix of incoming is appended only once.
// Fragments with no overlap are appended as they are, so a resend that
// shares no text with what was merged is duplicated.
func MergeText(existing, incoming string) string {
	switch {
	case existing == "":
		return incoming
	case strings.HasPrefix(incoming, existing):
		return incoming
	case strings.HasPrefix(existing, incoming):
		return existing
	}
	return existing + incoming[overlap(existing, incoming):]
}

// overlap returns the byte length of the longest suffix of a that is a
// prefix of b, cutting only at rune boundaries.
func overlap(a, b string) int {
	for n := min(len(a), len(b)); n > 0; n-- {
		start := len(a) - n
		if !utf8.RuneStart(a[start]) || (n < len(b) && !utf8.RuneStart(b[n])) {
			continue
		}
		if a[start:] == b[:n] {
			return n
		}
	}
	return 0
}

// Text accumulates fragments with MergeText.
type Text struct {
	s string
}

// Add merges a fragment and reports whether the text changed.
func (t *Text) Add(fragment string) bool {
	next := MergeText(t.s, fragment)
	changed := next != t.s
	t.s = next
	return changed
}

func (t *Text) String() string { return t.s }
