package providers

import (
	"os"
	"strings"
	"time"
)

// NewGroqBackend returns a chat backend for Groq's OpenAI-compatible API.
// An empty key is resolved from the environment.
func NewGroqBackend(apiKey string) *ChatBackend {
	if apiKey == "" {
		apiKey = resolveKey("groq", "")
	}
	return NewChatBackend("groq", GroqBaseURL, apiKey, 60*time.Second)
}

// resolveKey looks up DOCQ_<PROVIDER>_KEY_<ALIAS>, then <PROVIDER>_API_KEY.
func resolveKey(provider, alias string) string {
	p := sanitizeEnvToken(provider)
	if alias != "" {
		if v := os.Getenv("DOCQ_" + p + "_KEY_" + sanitizeEnvToken(alias)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(os.Getenv(p + "_API_KEY"))
}

func sanitizeEnvToken(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}
