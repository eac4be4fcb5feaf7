package rouge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	require.Equal(t, []string{"the", "cat", "s", "hat", "2024"}, Tokenize("The cat's HAT, 2024!"))
	require.Empty(t, Tokenize(" ... "))
}

func TestIdenticalTextsScoreOne(t *testing.T) {
	s := Compute("the cat sat on the mat", "The cat sat on the mat.")
	assert.InDelta(t, 1.0, s.Rouge1.F, 1e-9)
	assert.InDelta(t, 1.0, s.Rouge2.F, 1e-9)
	assert.InDelta(t, 1.0, s.RougeL.F, 1e-9)
}

func TestPartialOverlap(t *testing.T) {
	// candidate: the cat was found under the bed
	// reference: the cat was under the bed
	s := Compute("the cat was found under the bed", "the cat was under the bed")
	assert.InDelta(t, 6.0/7.0, s.Rouge1.Precision, 1e-9)
	assert.InDelta(t, 1.0, s.Rouge1.Recall, 1e-9)
	// bigrams shared: the-cat, cat-was, under-the, the-bed
	assert.InDelta(t, 4.0/6.0, s.Rouge2.Precision, 1e-9)
	assert.InDelta(t, 4.0/5.0, s.Rouge2.Recall, 1e-9)
	// LCS is the whole reference.
	assert.InDelta(t, 6.0/7.0, s.RougeL.Precision, 1e-9)
	assert.InDelta(t, 1.0, s.RougeL.Recall, 1e-9)
	assert.InDelta(t, 2*(6.0/7.0)/(6.0/7.0+1), s.RougeL.F, 1e-9)
}

func TestClippedCounts(t *testing.T) {
	s := N(Tokenize("the the the the"), Tokenize("the cat"), 1)
	assert.InDelta(t, 0.25, s.Precision, 1e-9)
	assert.InDelta(t, 0.5, s.Recall, 1e-9)
}

func TestEmptyInputs(t *testing.T) {
	require.Equal(t, Scores{}, Compute("", "reference text"))
	require.Equal(t, Scores{}, Compute("candidate", ""))
	require.Equal(t, Score{}, N(Tokenize("one"), Tokenize("one"), 2))
}

func TestLCSOrderMatters(t *testing.T) {
	a := Tokenize("a b c d")
	b := Tokenize("d c b a")
	require.Equal(t, 1, lcs(a, b))
	require.Equal(t, 3, lcs(Tokenize("a x b y c"), Tokenize("a b c")))
}
