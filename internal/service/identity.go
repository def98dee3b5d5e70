package service

import (
	"strings"
	"unicode"
)

// IdentityKey derives the deduplication key for a product from its name
// and vendor-reported lineage. The same real-world strain listed by two
// vendors must land on the same key: both parts are case-folded and
// stripped of punctuation, and a missing lineage falls back to "unknown"
// so sparse listings still key deterministically.
func IdentityKey(name, lineage string) string {
	l := normalizeKeyPart(lineage)
	if l == "" {
		l = "unknown"
	}
	return normalizeKeyPart(name) + "::" + l
}

// normalizeKeyPart lowercases, treats punctuation as a token separator and
// collapses whitespace to single spaces. Standalone "x" tokens are dropped
// so "Blueberry x Haze" and "Blueberry/Haze" normalize alike.
func normalizeKeyPart(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)

	fields := strings.Fields(mapped)
	tokens := fields[:0]
	for _, tok := range fields {
		if tok == "x" {
			continue
		}
		tokens = append(tokens, tok)
	}
	return strings.Join(tokens, " ")
}
