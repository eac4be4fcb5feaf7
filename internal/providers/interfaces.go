package providers

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Backend is a stateless text-generation service addressed by model id.
// Errors should be *BackendError so callers can tell rate limits from
// outages.
type Backend interface {
	Complete(ctx context.Context, modelID string, messages []Message) (string, error)
}

// BackendFunc adapts a plain function to Backend.
type BackendFunc func(ctx context.Context, modelID string, messages []Message) (string, error)

func (f BackendFunc) Complete(ctx context.Context, modelID string, messages []Message) (string, error) {
	return f(ctx, modelID, messages)
}

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}

// UserPrompt builds the single-turn conversation most callers need.
func UserPrompt(prompt string) []Message {
	return []Message{{Role: RoleUser, Content: prompt}}
}

// LastUserContent returns the content of the final user message.
func LastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// Configurer is implemented by backends that can tell without a network
// call whether a model has the credentials it needs.
type Configurer interface {
	Configured(modelID string) bool
}

// Configured reports whether b can serve modelID. Backends that do not
// implement Configurer are assumed to be configured.
func Configured(b Backend, modelID string) bool {
	if b == nil {
		return false
	}
	if c, ok := b.(Configurer); ok {
		return c.Configured(modelID)
	}
	return true
}
