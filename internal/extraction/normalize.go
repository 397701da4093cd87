package extraction

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var titleCaser = cases.Title(language.Spanish)

// Fold lowercases s, strips diacritics and collapses every run of non-letter,
// non-digit characters into one space, padded on both sides so callers can
// match whole words with " word ".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = strings.ToLower(s)
	}

	var sb strings.Builder
	sb.Grow(len(folded) + 2)
	sb.WriteByte(' ')
	space := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			space = false
			continue
		}
		if !space {
			sb.WriteByte(' ')
			space = true
		}
	}
	if !space {
		sb.WriteByte(' ')
	}
	return sb.String()
}

// ContainsPhrase reports whether folded text (see Fold) contains phrase as
// whole words. The phrase is folded too.
func ContainsPhrase(folded, phrase string) bool {
	p := Fold(phrase)
	if strings.TrimSpace(p) == "" {
		return false
	}
	return strings.Contains(folded, p)
}

// TitleWord title-cases a single name token using Spanish casing rules.
func TitleWord(s string) string {
	return titleCaser.String(strings.ToLower(s))
}
