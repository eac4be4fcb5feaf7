package similarity

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"docquorum/internal/providers"
)

// Oracle scores how similar two texts are, in [0,1].
type Oracle interface {
	Similarity(ctx context.Context, a, b string) (float64, error)
}

type Func func(ctx context.Context, a, b string) (float64, error)

func (f Func) Similarity(ctx context.Context, a, b string) (float64, error) { return f(ctx, a, b) }

// Clamp bounds a raw score to [0,1]; NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Embedding scores texts by cosine similarity of their embeddings.
type Embedding struct {
	Embedder  providers.EmbeddingProvider
	Dimension int
}

func (e *Embedding) Similarity(ctx context.Context, a, b string) (float64, error) {
	vecs, _, err := e.Embedder.Embed(ctx, providers.EmbedRequest{
		Operation: "similarity",
		Inputs:    []string{a, b},
		Dimension: e.Dimension,
	})
	if err != nil {
		return 0, fmt.Errorf("embed pair: %w", err)
	}
	if len(vecs) != 2 {
		return 0, fmt.Errorf("embed pair: expected 2 vectors, got %d", len(vecs))
	}
	return Clamp(Cosine(vecs[0], vecs[1])), nil
}

func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Lexical is an offline oracle: Jaccard overlap of lower-cased word sets.
type Lexical struct{}

func (Lexical) Similarity(ctx context.Context, a, b string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sa, sb := wordSet(a), wordSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0, nil
	}
	inter := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union), nil
}

func wordSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}
