// Package nlu turns raw WhatsApp text into intents, slot values and cart lines using
// deterministic keyword and pattern rules. Everything here is pure: the same input always
// produces the same output.
package nlu

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var spaces = regexp.MustCompile(`\s+`)

// Normalize lowercases, strips diacritics, collapses whitespace and trims.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	return strings.TrimSpace(spaces.ReplaceAllString(folded, " "))
}

// ContainsWords reports whether phrase appears in text on word boundaries. Both must be
// normalized.
func ContainsWords(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	padded := " " + wordsOnly(text) + " "
	return strings.Contains(padded, " "+wordsOnly(phrase)+" ")
}

// wordsOnly replaces punctuation with spaces so word matching ignores it.
func wordsOnly(s string) string {
	out := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
	return strings.TrimSpace(spaces.ReplaceAllString(out, " "))
}
