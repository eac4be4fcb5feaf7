package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ModelRef is one entry of a "provider:model|provider:model" list.
type ModelRef struct {
	Raw      string
	Provider string
	Model    string
}

// ParseModelRef splits "groq:llama3-8b-8192". Entries without a provider
// use defaultProvider; the bare word "mock" selects the mock backend.
func ParseModelRef(raw, defaultProvider string) ModelRef {
	raw = strings.TrimSpace(raw)
	ref := ModelRef{Raw: raw}
	if p, m, ok := strings.Cut(raw, ":"); ok {
		ref.Provider = strings.ToLower(strings.TrimSpace(p))
		ref.Model = strings.TrimSpace(m)
		return ref
	}
	if strings.EqualFold(raw, "mock") {
		ref.Provider = "mock"
		ref.Model = "mock"
		return ref
	}
	ref.Provider = defaultProvider
	ref.Model = raw
	return ref
}

// ParseModelList parses a "|" separated list, dropping blank entries and
// keeping order.
func ParseModelList(raw, defaultProvider string) []ModelRef {
	parts := strings.Split(raw, "|")
	out := make([]ModelRef, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, ParseModelRef(p, defaultProvider))
	}
	return out
}

// ModelIDs returns the raw ids of refs in order.
func ModelIDs(refs []ModelRef) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.Raw)
	}
	return out
}

// Router dispatches a model id to the backend registered for its provider.
type Router struct {
	defaultProvider string
	backends        map[string]Backend
}

func NewRouter(defaultProvider string) *Router {
	if defaultProvider == "" {
		defaultProvider = "groq"
	}
	return &Router{defaultProvider: defaultProvider, backends: map[string]Backend{}}
}

func (r *Router) Register(provider string, b Backend) {
	r.backends[strings.ToLower(provider)] = b
}

func (r *Router) Providers() []string {
	out := make([]string, 0, len(r.backends))
	for name := range r.backends {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether modelID resolves to a registered backend.
func (r *Router) Supports(modelID string) bool {
	_, ok := r.backends[ParseModelRef(modelID, r.defaultProvider).Provider]
	return ok
}

// Configured reports whether modelID resolves to a backend that has its
// credentials.
func (r *Router) Configured(modelID string) bool {
	ref := ParseModelRef(modelID, r.defaultProvider)
	b, ok := r.backends[ref.Provider]
	return ok && Configured(b, ref.Model)
}

func (r *Router) Complete(ctx context.Context, modelID string, messages []Message) (string, error) {
	ref := ParseModelRef(modelID, r.defaultProvider)
	b, ok := r.backends[ref.Provider]
	if !ok {
		return "", newError(KindNotConfigured, ref.Provider, ref.Model, fmt.Errorf("no backend registered for provider %q", ref.Provider))
	}
	return b.Complete(ctx, ref.Model, messages)
}

// RouterOptions carries what NewDefaultRouter needs to reach each provider.
type RouterOptions struct {
	DefaultProvider string
	OllamaURL       string
	GroqBaseURL     string
	OpenAIBaseURL   string
}

// NewDefaultRouter registers every supported provider. Keys come from the
// environment; missing keys surface as not-configured errors per call.
func NewDefaultRouter(ctx context.Context, opts RouterOptions) (*Router, error) {
	r := NewRouter(opts.DefaultProvider)
	r.Register("mock", NewMockBackend())
	groqURL := opts.GroqBaseURL
	if groqURL == "" {
		groqURL = GroqBaseURL
	}
	r.Register("groq", NewChatBackend("groq", groqURL, resolveKey("groq", ""), 0))
	openaiURL := opts.OpenAIBaseURL
	if openaiURL == "" {
		openaiURL = OpenAIBaseURL
	}
	r.Register("openai", NewChatBackend("openai", openaiURL, resolveKey("openai", ""), 0))
	r.Register("ollama", NewOllamaBackend(opts.OllamaURL))
	gem, err := NewGeminiBackend(ctx, "")
	if err != nil {
		return nil, err
	}
	r.Register("gemini", gem)
	return r, nil
}
