package document

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"docquorum/internal/models"
	"docquorum/internal/providers"
	"docquorum/internal/similarity"
)

const (
	searchPrefixChars = 500
	headingWeight     = 0.7
	contentWeight     = 0.3
	contextSeparator  = "\n\n---\n\n"
)

var headingRe = regexp.MustCompile(`(?m)^\s*[A-Z][A-Z\s.()&’]{4,99}\s*$`)

// Retriever locates the section, and the passages inside it, that best
// match a question using embeddings.
type Retriever struct {
	Embedder  providers.EmbeddingProvider
	Dimension int
}

// Passage is the text a question should be answered from.
type Passage struct {
	Section models.Section `json:"section"`
	Text    string         `json:"text"`
	// Refined is true when Text holds the best sub-sections rather than
	// the whole section.
	Refined bool `json:"refined"`
}

// FindSection ranks sections by similarity of the question to each
// section's title plus the start of its text.
func (r *Retriever) FindSection(ctx context.Context, question string, sections []models.Section) (int, error) {
	if len(sections) == 0 {
		return -1, errors.New("no sections to search")
	}
	inputs := make([]string, 0, len(sections)+1)
	inputs = append(inputs, question)
	for _, s := range sections {
		inputs = append(inputs, s.Title+"\n\n"+headRunes(s.Text, searchPrefixChars))
	}
	scores, err := r.scoreAgainstFirst(ctx, inputs)
	if err != nil {
		return -1, err
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best, nil
}

// FindContext picks the best section, then narrows it to its two most
// relevant ALL-CAPS headed sub-sections when it has more than one.
func (r *Retriever) FindContext(ctx context.Context, question string, sections []models.Section) (Passage, error) {
	idx, err := r.FindSection(ctx, question, sections)
	if err != nil {
		return Passage{}, err
	}
	sec := sections[idx]
	subs := splitHeadings(sec.Text)
	if len(subs) < 2 {
		return Passage{Section: sec, Text: sec.Text}, nil
	}

	inputs := []string{question}
	for _, s := range subs {
		inputs = append(inputs, s.heading)
	}
	for _, s := range subs {
		inputs = append(inputs, s.searchText())
	}
	vecs, _, err := r.Embedder.Embed(ctx, providers.EmbedRequest{Operation: "retrieve_subsection", Inputs: inputs, Dimension: r.Dimension})
	if err != nil {
		return Passage{}, fmt.Errorf("embed sub-sections: %w", err)
	}
	if len(vecs) != len(inputs) {
		return Passage{}, fmt.Errorf("embed sub-sections: expected %d vectors, got %d", len(inputs), len(vecs))
	}
	type ranked struct {
		i     int
		score float64
	}
	n := len(subs)
	list := make([]ranked, n)
	for i := range subs {
		h := similarity.Cosine(vecs[0], vecs[1+i])
		c := similarity.Cosine(vecs[0], vecs[1+n+i])
		list[i] = ranked{i: i, score: headingWeight*h + contentWeight*c}
	}
	sort.SliceStable(list, func(a, b int) bool { return list[a].score > list[b].score })
	top := make([]string, 0, 2)
	for _, rk := range list[:min(2, n)] {
		top = append(top, subs[rk.i].searchText())
	}
	return Passage{Section: sec, Text: strings.Join(top, contextSeparator), Refined: true}, nil
}

func (r *Retriever) scoreAgainstFirst(ctx context.Context, inputs []string) ([]float64, error) {
	if r.Embedder == nil {
		return nil, errors.New("no embedding provider configured")
	}
	vecs, _, err := r.Embedder.Embed(ctx, providers.EmbedRequest{Operation: "retrieve_section", Inputs: inputs, Dimension: r.Dimension})
	if err != nil {
		return nil, fmt.Errorf("embed sections: %w", err)
	}
	if len(vecs) != len(inputs) {
		return nil, fmt.Errorf("embed sections: expected %d vectors, got %d", len(inputs), len(vecs))
	}
	out := make([]float64, 0, len(vecs)-1)
	for _, v := range vecs[1:] {
		out = append(out, similarity.Cosine(vecs[0], v))
	}
	return out, nil
}

type subsection struct {
	heading string
	content string
}

func (s subsection) searchText() string { return s.heading + "\n" + s.content }

// splitHeadings cuts text at ALL-CAPS heading lines. Text before the
// first heading is ignored.
func splitHeadings(text string) []subsection {
	locs := headingRe.FindAllStringIndex(text, -1)
	var out []subsection
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		h := strings.TrimSpace(text[loc[0]:loc[1]])
		c := strings.TrimSpace(text[loc[1]:end])
		if h != "" && c != "" {
			out = append(out, subsection{heading: h, content: c})
		}
	}
	return out
}

func headRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
