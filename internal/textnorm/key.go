package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticFold decomposes to NFD, removes combining marks, and
// recomposes, so that "Dvořák" and "Dvorak" produce the same key.
var diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Key normalizes a phrase to its cache-key form: case-folded,
// diacritics folded, punctuation stripped, whitespace collapsed. Two
// phrases with equal keys must share one cache entry.
func Key(phrase string) string {
	folded, _, err := transform.String(diacriticFold, phrase)
	if err != nil {
		folded = phrase
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
