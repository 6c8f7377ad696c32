package services

import "unicode/utf8"

// truncate caps s at max bytes without splitting a multibyte rune; the cut
// backs up to the previous rune boundary when max lands mid-sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
