package document

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docquorum/internal/models"
	"docquorum/internal/providers"

	"github.com/stretchr/testify/require"
)

// keywordEmbedder counts vocabulary words, so cosine scores are easy to
// reason about by hand.
type keywordEmbedder struct {
	vocab []string
	calls int
}

func (k *keywordEmbedder) Embed(ctx context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	k.calls++
	out := make([][]float32, 0, len(req.Inputs))
	for _, in := range req.Inputs {
		v := make([]float32, len(k.vocab))
		for _, w := range strings.Fields(strings.ToLower(in)) {
			w = strings.Trim(w, ".,?!")
			for i, voc := range k.vocab {
				if strings.HasPrefix(w, voc) {
					v[i]++
				}
			}
		}
		out = append(out, v)
	}
	return out, providers.ProviderInfo{Name: "test"}, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	return nil, providers.ProviderInfo{}, errors.New("embedder down")
}

func testSections() []models.Section {
	return []models.Section{
		{Index: 0, Title: "Budget", Text: "income tax income tax revenue"},
		{Index: 1, Title: "Animals", Text: "Preamble words.\nINCOME TAX\nincome tax rules apply here\nDOG LICENSES\ndog rules\nCAT REGISTRY\ncat rules"},
	}
}

func TestFindSection(t *testing.T) {
	r := &Retriever{Embedder: &keywordEmbedder{vocab: []string{"income", "tax", "dog", "cat", "rules"}}}
	idx, err := r.FindSection(context.Background(), "What about tax?", testSections())
	require.NoError(t, err)
	require.Equal(t, 0, idx)

	idx, err = r.FindSection(context.Background(), "dog rules", testSections())
	require.NoError(t, err)
	require.Equal(t, 1, idx)
}

func TestFindContextRefinesToTopTwoSubsections(t *testing.T) {
	emb := &keywordEmbedder{vocab: []string{"income", "tax", "dog", "cat", "rules"}}
	r := &Retriever{Embedder: emb}
	p, err := r.FindContext(context.Background(), "dog rules", testSections())
	require.NoError(t, err)
	require.True(t, p.Refined)
	require.Equal(t, "Animals", p.Section.Title)
	require.Equal(t, "DOG LICENSES\ndog rules\n\n---\n\nCAT REGISTRY\ncat rules", p.Text)
	require.Equal(t, 2, emb.calls)
}

func TestFindContextWholeSectionWithoutHeadings(t *testing.T) {
	r := &Retriever{Embedder: &keywordEmbedder{vocab: []string{"income", "tax", "dog"}}}
	p, err := r.FindContext(context.Background(), "income tax", testSections())
	require.NoError(t, err)
	require.False(t, p.Refined)
	require.Equal(t, "income tax income tax revenue", p.Text)
}

func TestFindContextErrors(t *testing.T) {
	r := &Retriever{Embedder: failingEmbedder{}}
	_, err := r.FindContext(context.Background(), "q", testSections())
	require.ErrorContains(t, err, "embedder down")

	_, err = (&Retriever{Embedder: failingEmbedder{}}).FindSection(context.Background(), "q", nil)
	require.Error(t, err)

	_, err = (&Retriever{}).FindSection(context.Background(), "q", testSections())
	require.Error(t, err)
}

func TestSplitHeadingsIgnoresPreamble(t *testing.T) {
	subs := splitHeadings(testSections()[1].Text)
	require.Len(t, subs, 3)
	require.Equal(t, "INCOME TAX", subs[0].heading)
	require.Equal(t, "income tax rules apply here", subs[0].content)
}
