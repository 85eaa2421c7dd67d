// Package trigram implements both on-disk forms of the trigram inverted
// index (spec §4.3 text form, §4.4 binary form). They share one extraction
// algorithm and one ranking rule. They differ in persistence and in one
// search rule: for an empty term set the text form returns an empty result,
// while the binary form lists every indexed identifier. This asymmetry is
// intentional; callers needing one behaviour from both forms must
// pre-filter empty queries.
package trigram

import (
	"strings"
	"unicode"
)

// Trigram is three consecutive lower-cased Unicode characters containing at
// least one alphanumeric character, per spec §4.3's canonical algorithm.
// Stored as its UTF-8 byte form so CJK and other multi-byte runs encode and
// compare naturally.
type Trigram string

// Extract slides a 3-rune window across the lower-cased input, emitting a
// window only when it contains at least one alphanumeric character, and
// deduplicating across the document while preserving first-occurrence
// order. Input shorter than 3 runes yields no trigrams.
func Extract(text string) []Trigram {
	lower := strings.ToLower(text)
	runes := []rune(lower)
	if len(runes) < 3 {
		return nil
	}

	seen := make(map[Trigram]bool, len(runes))
	out := make([]Trigram, 0, len(runes))
	for i := 0; i+3 <= len(runes); i++ {
		window := runes[i : i+3]
		if !hasAlphanumeric(window) {
			continue
		}
		tg := Trigram(string(window))
		if seen[tg] {
			continue
		}
		seen[tg] = true
		out = append(out, tg)
	}
	return out
}

func hasAlphanumeric(window []rune) bool {
	for _, r := range window {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// ExtractSet is Extract, but returned as a set for posting-union use.
func ExtractSet(text string) map[Trigram]bool {
	ts := Extract(text)
	set := make(map[Trigram]bool, len(ts))
	for _, t := range ts {
		set[t] = true
	}
	return set
}

// searchableComposition builds the composed path+content text that Insert
// extracts trigrams from, per spec §4.3.
func searchableComposition(path, content string) string {
	var b strings.Builder
	b.Grow(len(path) + 1 + len(content))
	b.WriteString(path)
	b.WriteByte(' ')
	b.WriteString(content)
	return b.String()
}
