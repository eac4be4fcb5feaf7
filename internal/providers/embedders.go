package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type NamedEmbedder struct {
	Ref      ModelRef
	Provider EmbeddingProvider
}

// EmbedderChain tries embedders in preference order, real providers before
// the mock, and returns the first success.
type EmbedderChain struct {
	embedders []NamedEmbedder
}

// NewEmbedderChain builds embedders from a "openai|ollama:nomic|mock" list.
func NewEmbedderChain(raw, ollamaURL string, dim int) (*EmbedderChain, error) {
	refs := ParseModelList(raw, "")
	c := &EmbedderChain{}
	for _, ref := range refs {
		name := ref.Provider
		if name == "" {
			name = strings.ToLower(ref.Model)
		}
		var p EmbeddingProvider
		switch name {
		case "mock":
			p = NewMockEmbedder(dim)
		case "openai":
			p = NewOpenAIEmbedder(aliasOf(ref))
		case "ollama":
			p = NewOllamaEmbedder(ollamaURL, aliasOf(ref))
		default:
			return nil, fmt.Errorf("unsupported embedding provider: %s", ref.Raw)
		}
		ref.Provider = name
		c.embedders = append(c.embedders, NamedEmbedder{Ref: ref, Provider: p})
	}
	if len(c.embedders) == 0 {
		c.embedders = []NamedEmbedder{{Ref: ModelRef{Raw: "mock", Provider: "mock"}, Provider: NewMockEmbedder(dim)}}
	}
	c.embedders = preferredOrder(c.embedders)
	return c, nil
}

func aliasOf(ref ModelRef) string {
	if ref.Provider == "" {
		return ""
	}
	return ref.Model
}

func (c *EmbedderChain) Refs() []ModelRef {
	out := make([]ModelRef, 0, len(c.embedders))
	for _, e := range c.embedders {
		out = append(out, e.Ref)
	}
	return out
}

func (c *EmbedderChain) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	var errs []error
	for _, e := range c.embedders {
		vecs, info, err := e.Provider.Embed(ctx, req)
		if err == nil {
			return vecs, info, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", e.Ref.Raw, err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, ProviderInfo{}, errors.Join(errs...)
}

func preferredOrder(in []NamedEmbedder) []NamedEmbedder {
	out := make([]NamedEmbedder, 0, len(in))
	for _, e := range in {
		if e.Ref.Provider != "mock" {
			out = append(out, e)
		}
	}
	for _, e := range in {
		if e.Ref.Provider == "mock" {
			out = append(out, e)
		}
	}
	return out
}
