// Package server cleans untrusted input before it is stored or displayed.
package server

import "strings"

// sanitizeText HTML-escapes angle brackets, truncates to max runes, and
// trims surrounding whitespace. Escaping happens before truncation, so a
// trailing entity may be cut; displays tolerate that over raw markup.
func sanitizeText(s string, max int) string {
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	if runes := []rune(s); len(runes) > max {
		s = string(runes[:max])
	}
	return strings.TrimSpace(s)
}

// normalizeUsername sanitizes a display name and collapses whitespace runs
// into single underscores. Returns "" for names with no usable characters.
func normalizeUsername(s string, max int) string {
	s = sanitizeText(s, max)
	return strings.Join(strings.Fields(s), "_")
}
