package util

import "strings"

// SanitizeText cleans extracted page text for prompts and for Postgres,
// which rejects NUL in text columns. Line endings become "\n"; other
// control runes, DEL and U+FFFD are dropped.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(ch rune) rune {
		switch {
		case ch == '\n' || ch == '\t':
			return ch
		case ch == '\r':
			return '\n'
		case ch < 0x20, ch == 0x7f, ch == '�':
			return -1
		}
		return ch
	}, s)
	return strings.TrimSpace(s)
}
