package consensus

import (
	"fmt"
	"testing"

	"docquorum/internal/models"

	"github.com/stretchr/testify/require"
)

func ok(id, text string) models.Candidate {
	return models.Candidate{ModelID: id, Text: text, Status: models.StatusOK}
}

func failed(id string) models.Candidate {
	return models.Candidate{ModelID: id, Text: "Direct summarization failed: boom", Status: models.StatusError, ErrorKind: "unreachable"}
}

func table(values map[[2]string]float64) PairScorer {
	return func(a, b models.Candidate) float64 {
		if v, ok := values[[2]string{a.ModelID, b.ModelID}]; ok {
			return v
		}
		return values[[2]string{b.ModelID, a.ModelID}]
	}
}

func TestResolveScenarioA(t *testing.T) {
	out := Resolve([]models.Candidate{ok("m1", "one"), ok("m2", "two"), ok("m3", "three")}, table(map[[2]string]float64{
		{"m1", "m2"}: 0.9,
		{"m1", "m3"}: 0.2,
		{"m2", "m3"}: 0.3,
	}))

	require.Equal(t, ReasonConsensus, out.Reason)
	require.Equal(t, "m2", out.BestModelID)
	require.Equal(t, "two", out.BestText)
	require.InDelta(t, 0.55, out.Scores["m1"], 1e-9)
	require.InDelta(t, 0.60, out.Scores["m2"], 1e-9)
	require.InDelta(t, 0.25, out.Scores["m3"], 1e-9)
}

func TestResolveMatrixSymmetricWithUnitDiagonal(t *testing.T) {
	var cands []models.Candidate
	for i := 0; i < 6; i++ {
		cands = append(cands, ok(fmt.Sprintf("m%d", i), fmt.Sprintf("text %d", i)))
	}
	calls := 0
	out := Resolve(cands, func(a, b models.Candidate) float64 {
		calls++
		return float64(len(a.ModelID)+len(b.ModelID)+calls) / 40
	})
	require.Equal(t, 15, calls)
	m := out.Matrix
	for i := range m.Models {
		require.Equal(t, 1.0, m.Values[i][i])
		for j := range m.Models {
			require.Equal(t, m.Values[i][j], m.Values[j][i])
		}
	}
}

func TestResolveTieGoesToFirstModel(t *testing.T) {
	for run := 0; run < 5; run++ {
		out := Resolve([]models.Candidate{ok("b", "x"), ok("a", "y"), ok("c", "z")}, func(models.Candidate, models.Candidate) float64 { return 0.5 })
		require.Equal(t, "b", out.BestModelID)
	}
	// equal means built from different sums differ in the last bit
	out := Resolve([]models.Candidate{ok("q", "w"), ok("p", "x"), ok("r", "y"), ok("s", "z")}, table(map[[2]string]float64{
		{"p", "q"}: 0.1,
		{"p", "r"}: 0.1,
		{"p", "s"}: 0.4,
		{"q", "r"}: 0.4,
		{"q", "s"}: 0.1,
		{"r", "s"}: 0.0,
	}))
	require.Less(t, out.Scores["q"], out.Scores["p"])
	require.Equal(t, "q", out.BestModelID)
}

func TestResolveScoreMonotonic(t *testing.T) {
	base := map[[2]string]float64{{"m1", "m2"}: 0.4, {"m1", "m3"}: 0.3, {"m2", "m3"}: 0.5}
	before := Resolve([]models.Candidate{ok("m1", "a"), ok("m2", "b"), ok("m3", "c")}, table(base))
	raised := map[[2]string]float64{{"m1", "m2"}: 0.6, {"m1", "m3"}: 0.7, {"m2", "m3"}: 0.5}
	after := Resolve([]models.Candidate{ok("m1", "a"), ok("m2", "b"), ok("m3", "c")}, table(raised))
	require.GreaterOrEqual(t, after.Scores["m1"], before.Scores["m1"])
	require.Equal(t, "m1", after.BestModelID)
}

func TestResolveSingleValidSkipsScoring(t *testing.T) {
	out := Resolve([]models.Candidate{failed("m1"), ok("m2", "only one"), failed("m3")}, func(models.Candidate, models.Candidate) float64 {
		t.Fatalf("scorer must not be called with one valid candidate")
		return 0
	})
	require.Equal(t, ReasonSingleValid, out.Reason)
	require.Equal(t, "m2", out.BestModelID)
	require.Equal(t, "only one", out.BestText)
	require.Nil(t, out.Matrix)
}

func TestResolveNoValidReturnsSentinel(t *testing.T) {
	out := Resolve([]models.Candidate{failed("m1"), {ModelID: "m2", Status: models.StatusOK, Text: "   "}}, func(models.Candidate, models.Candidate) float64 {
		t.Fatalf("scorer must not be called")
		return 0
	})
	require.Equal(t, ReasonNoValid, out.Reason)
	require.Equal(t, NoValidAnswer, out.BestText)
	require.Empty(t, out.BestModelID)
}

func TestResolveClampsScores(t *testing.T) {
	out := Resolve([]models.Candidate{ok("a", "x"), ok("b", "y")}, func(models.Candidate, models.Candidate) float64 { return 7 })
	require.Equal(t, 1.0, out.Matrix.Get("a", "b"))
}

func TestRankingStable(t *testing.T) {
	r := Ranking([]string{"a", "b", "c"}, map[string]float64{"a": 0.2, "b": 0.5, "c": 0.2})
	require.Equal(t, []ModelScore{{"b", 0.5}, {"a", 0.2}, {"c", 0.2}}, r)
}

func TestMatrixString(t *testing.T) {
	m := NewMatrix([]string{"m1", "m2"})
	m.Set(0, 1, 0.25)
	m.Set(1, 1, 0.1)
	s := m.String()
	require.Contains(t, s, "0.2500")
	require.Contains(t, s, "1.0000")
	require.Equal(t, 0.25, m.Get("m2", "m1"))
	require.Equal(t, 0.0, m.Get("m2", "zz"))
}
