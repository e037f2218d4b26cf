// Package textutil cleans catalog text for display.
package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// invisible reports zero-width and deprecated formatting characters that
// render as nothing but break comparisons.
func invisible(r rune) bool {
	switch {
	case r >= 0x200B && r <= 0x200D:
		return true
	case r == 0xFEFF:
		return true
	case r >= 0x2060 && r <= 0x2064:
		return true
	case r >= 0x206A && r <= 0x206F:
		return true
	}
	return false
}

// Sanitize normalizes s to NFC, drops invisible characters and trims it.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if invisible(r) {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// SanitizePtr sanitizes a nullable field in place.
func SanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := Sanitize(*s)
	return &clean
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n == 1 {
		return string(runes[:1])
	}
	return string(runes[:n-1]) + "…"
}
