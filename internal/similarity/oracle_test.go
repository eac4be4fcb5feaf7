package similarity

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"docquorum/internal/pacing"
	"docquorum/internal/providers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	require.Equal(t, 0.0, Clamp(-0.2))
	require.Equal(t, 1.0, Clamp(1.3))
	require.Equal(t, 0.0, Clamp(math.NaN()))
	require.Equal(t, 0.42, Clamp(0.42))
}

func TestLexical(t *testing.T) {
	ctx := context.Background()
	s, err := Lexical{}.Similarity(ctx, "The cat sat.", "the CAT sat")
	require.NoError(t, err)
	require.Equal(t, 1.0, s)

	s, err = Lexical{}.Similarity(ctx, "a b c d", "c d e f")
	require.NoError(t, err)
	require.InDelta(t, 2.0/6.0, s, 1e-9)

	s, err = Lexical{}.Similarity(ctx, "", "anything")
	require.NoError(t, err)
	require.Equal(t, 0.0, s)
}

func TestEmbeddingOracle(t *testing.T) {
	o := &Embedding{Embedder: providers.NewMockEmbedder(64)}
	same, err := o.Similarity(context.Background(), "identical text", "identical text")
	require.NoError(t, err)
	require.InDelta(t, 1.0, same, 1e-6)

	diff, err := o.Similarity(context.Background(), "identical text", "something else")
	require.NoError(t, err)
	require.GreaterOrEqual(t, diff, 0.0)
	require.Less(t, diff, 1.0)
}

func TestCosineZeroVector(t *testing.T) {
	require.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestNinjas(t *testing.T) {
	long := strings.Repeat("é", 6000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, NinjasMaxChars, utf8.RuneCountInString(body["text_1"]))
		assert.Equal(t, "short", body["text_2"])
		_, _ = w.Write([]byte(`{"similarity": 0.73}`))
	}))
	defer srv.Close()

	s, err := NewNinjas(srv.URL, "secret", 0).Similarity(context.Background(), long, "short")
	require.NoError(t, err)
	require.Equal(t, 0.73, s)
}

func TestNinjasErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewNinjas(srv.URL, "secret", 0).Similarity(context.Background(), "a", "b")
	require.Error(t, err)

	_, err = NewNinjas(srv.URL, "", 0).Similarity(context.Background(), "a", "b")
	require.Error(t, err)
}

func TestPacedOracle(t *testing.T) {
	clk := pacing.NewFakeClock(time.Unix(0, 0))
	p := &Paced{Oracle: Lexical{}, Limiter: pacing.NewLimiter(1100*time.Millisecond, clk)}
	for i := 0; i < 3; i++ {
		_, err := p.Similarity(context.Background(), "a", "a")
		require.NoError(t, err)
	}
	require.Len(t, clk.Sleeps(), 2)
}
