package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiBackend generates text through the Gemini API.
type GeminiBackend struct {
	client *genai.Client
}

// NewGeminiBackend builds a client when a key is available. Without one the
// backend still exists but every call fails as not configured.
func NewGeminiBackend(ctx context.Context, apiKey string) (*GeminiBackend, error) {
	if apiKey == "" {
		apiKey = resolveKey("gemini", "")
	}
	if apiKey == "" {
		return &GeminiBackend{}, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiBackend{client: c}, nil
}

func (g *GeminiBackend) Configured(string) bool { return g.client != nil }

func (g *GeminiBackend) Complete(ctx context.Context, modelID string, messages []Message) (string, error) {
	if g.client == nil {
		return "", newError(KindNotConfigured, "gemini", modelID, errors.New("gemini api key missing"))
	}
	contents, cfg := toGeminiContents(messages)
	if len(contents) == 0 {
		return "", newError(KindUnknown, "gemini", modelID, errors.New("no user content"))
	}
	res, err := g.client.Models.GenerateContent(ctx, modelID, contents, cfg)
	if err != nil {
		return "", newError(ClassifyError(err), "gemini", modelID, fmt.Errorf("gemini generate: %w", err))
	}
	text := strings.TrimSpace(res.Text())
	if text == "" {
		return "", newError(KindUnknown, "gemini", modelID, errors.New("gemini returned empty text"))
	}
	return text, nil
}

// toGeminiContents folds system messages into the system instruction.
func toGeminiContents(messages []Message) ([]*genai.Content, *genai.GenerateContentConfig) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) == 0 {
		return contents, nil
	}
	return contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser),
	}
}
