package domain

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	commaSpacing = regexp.MustCompile(`\s*,\s*`)

	// Expanded before title-casing so that "Hauptstr." and "Str." both end up
	// as a correctly cased "straße"/"Straße".
	abbreviations = []struct {
		re   *regexp.Regexp
		full string
	}{
		{regexp.MustCompile(`(?i)str\.`), "straße"},
		{regexp.MustCompile(`(?i)pl\.`), "platz"},
	}
)

// NormalizeAddress returns the canonical cache-key form of a postal address.
// It is deterministic and pure: trim, unify comma spacing, collapse
// whitespace, expand German street abbreviations, then title-case each word.
func NormalizeAddress(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = commaSpacing.ReplaceAllString(s, ", ")
	s = strings.Join(strings.Fields(s), " ")

	for _, a := range abbreviations {
		s = a.re.ReplaceAllString(s, a.full)
	}

	return titleCase(s)
}

// titleCase upper-cases a letter that follows a non-letter and lower-cases
// every other letter.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				r = unicode.ToLower(r)
			} else {
				r = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
		b.WriteRune(r)
	}

	return b.String()
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	if substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
