package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are dropped from the end of a business name when building
// a match key.
var legalSuffixes = []string{
	"llc", "l l c", "inc", "incorporated", "corp", "corporation",
	"co", "company", "ltd", "limited", "lp", "llp", "pllc", "pc",
}

var (
	nonKeyRe = regexp.MustCompile(`[^a-z0-9 ]+`)
	slugRe   = regexp.MustCompile(`[^a-z0-9]+`)
)

// fold strips diacritics so "Peña Masonry" and "Pena Masonry" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Collapse trims and collapses internal whitespace.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExactName is the case-insensitive comparison form of a business name.
func ExactName(name string) string {
	return strings.ToLower(Collapse(name))
}

// NameKey is the loose comparison form of a business name: diacritics,
// punctuation and trailing legal suffixes removed, "&" spelled out.
func NameKey(name string) string {
	s := strings.ToLower(fold(name))
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, ".", "")
	s = nonKeyRe.ReplaceAllString(s, " ")
	s = Collapse(s)

	for _, suffix := range legalSuffixes {
		if s != suffix && strings.HasSuffix(s, " "+suffix) {
			s = strings.TrimSuffix(s, " "+suffix)
			break
		}
	}
	return s
}

// Slug returns a lowercase hyphenated ASCII identifier.
func Slug(name string) string {
	s := strings.ToLower(fold(name))
	s = strings.ReplaceAll(s, "&", " and ")
	s = strings.ReplaceAll(s, "'", "")
	s = slugRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

var titleCaser = cases.Title(language.AmericanEnglish)

// City title-cases a locality name ("SCOTTSDALE" -> "Scottsdale").
func City(s string) string {
	s = Collapse(s)
	if s == "" {
		return ""
	}
	return titleCaser.String(strings.ToLower(s))
}
