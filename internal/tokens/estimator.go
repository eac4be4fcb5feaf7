package tokens

import (
	"strings"
	"unicode/utf8"
)

// Estimator reports how many model-input tokens a text will consume.
type Estimator interface {
	Estimate(text, modelFamily string) int
}

// family maps a model id prefix to an average of characters per token,
// scaled by 100 so the arithmetic stays in integers.
type family struct {
	prefix   string
	charsPer int
}

// Ordered longest-prefix first so "llama3" wins over "llama".
var families = []family{
	{prefix: "gpt-4o", charsPer: 400},
	{prefix: "gpt-4", charsPer: 400},
	{prefix: "gpt-3.5", charsPer: 400},
	{prefix: "text-embedding", charsPer: 400},
	{prefix: "llama3", charsPer: 380},
	{prefix: "llama-3", charsPer: 380},
	{prefix: "llama", charsPer: 350},
	{prefix: "gemma", charsPer: 400},
	{prefix: "gemini", charsPer: 400},
	{prefix: "mixtral", charsPer: 350},
	{prefix: "mistral", charsPer: 350},
	{prefix: "qwen", charsPer: 330},
}

const genericCharsPer = 400

// Heuristic estimates tokens from rune counts using per-family ratios.
// Unknown families use the generic ratio.
type Heuristic struct{}

func NewHeuristic() Heuristic { return Heuristic{} }

func (Heuristic) Estimate(text, modelFamily string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	per := RatioFor(modelFamily)
	return (n*100 + per - 1) / per
}

// RatioFor returns the scaled chars-per-token ratio used for a model id.
// Provider prefixes such as "groq:" are ignored.
func RatioFor(modelFamily string) int {
	m := strings.ToLower(strings.TrimSpace(modelFamily))
	if i := strings.LastIndex(m, ":"); i >= 0 {
		m = m[i+1:]
	}
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	for _, f := range families {
		if strings.HasPrefix(m, f.prefix) {
			return f.charsPer
		}
	}
	return genericCharsPer
}

// Fixed always reports the same count. Useful to force a branch in tests.
type Fixed int

func (f Fixed) Estimate(string, string) int {
	if f < 0 {
		return 0
	}
	return int(f)
}
