package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// ContentHash identifies uploaded bytes so a re-upload maps to the same
// document.
func ContentHash(b []byte) string {
	x := sha256.Sum256(b)
	return hex.EncodeToString(x[:])
}

// Snippet flattens text to one line of at most maxRunes runes for logs and
// terminal previews.
func Snippet(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 160
	}
	s = strings.Join(strings.Fields(restoreWordBoundaries(SanitizeText(s))), " ")
	runes := []rune(s)
	if len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes])) + "..."
	}
	return s
}

// restoreWordBoundaries re-inserts spaces PDF extraction tends to drop
// between a lower-case letter and a following capital.
func restoreWordBoundaries(s string) string {
	in := []rune(s)
	out := make([]rune, 0, len(in)+len(in)/8)
	for i, r := range in {
		if i > 0 && unicode.IsLower(in[i-1]) && unicode.IsUpper(r) {
			out = append(out, ' ')
		}
		out = append(out, r)
	}
	return string(out)
}
