package util

import "strings"

// Windows splits text into consecutive windows of at most size runes.
// Windows are trimmed and blank ones are dropped.
func Windows(text string, size int) []string {
	if size <= 0 {
		size = 8000
	}
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		if part := strings.TrimSpace(string(runes[start:end])); part != "" {
			out = append(out, part)
		}
	}
	return out
}
