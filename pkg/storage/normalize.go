package storage

import (
	"strings"
	"unicode"
)

// NormalizeCompany gives company names a stable identity for grouping:
// surrounding space is dropped, inner runs of space collapse and case folds.
func NormalizeCompany(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	var b strings.Builder
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// NormalizeText lowercases and trims free text for substring matching.
func NormalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
