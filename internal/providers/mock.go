package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// MockBackend returns deterministic text derived from the prompt. Model ids
// containing "fail" always error, which makes partial-failure runs easy to
// reproduce offline.
type MockBackend struct{}

func NewMockBackend() *MockBackend { return &MockBackend{} }

func (m *MockBackend) Complete(ctx context.Context, modelID string, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", newError(KindUnreachable, "mock", modelID, err)
	}
	if strings.Contains(strings.ToLower(modelID), "fail") {
		return "", newError(KindUnreachable, "mock", modelID, fmt.Errorf("mock backend refused model %q", modelID))
	}
	prompt := LastUserContent(messages)
	words := strings.Fields(prompt)
	if len(words) > 24 {
		words = words[len(words)-24:]
	}
	sum := sha256.Sum256([]byte(modelID + "\x00" + prompt))
	return fmt.Sprintf("Mock response (%s, %s): %s", modelID, hex.EncodeToString(sum[:4]), strings.Join(words, " ")), nil
}

// MockEmbedder produces unit-length vectors seeded from the input text.
type MockEmbedder struct {
	dim int
}

func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &MockEmbedder{dim: dim}
}

func (m *MockEmbedder) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		vec[i] = float32(u%2000)/1000.0 - 1.0
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
