package consensus

import (
	"docquorum/internal/models"
	"docquorum/internal/similarity"
)

const (
	// NoValidAnswer is returned as the best text when no model produced a
	// usable result.
	NoValidAnswer = "Could not generate a valid answer from any model."

	ReasonConsensus   = "consensus"
	ReasonSingleValid = "single_valid"
	ReasonNoValid     = "no_valid"

	// tieEpsilon absorbs float noise when comparing means built from
	// different sums.
	tieEpsilon = 1e-12
)

// PairScorer returns the similarity of two valid candidates. It is called
// once per unordered pair, in matrix order. Failures must be reported as 0.
type PairScorer func(a, b models.Candidate) float64

// Outcome is the pure result of voting over a candidate set.
type Outcome struct {
	BestModelID string             `json:"best_model_id,omitempty"`
	BestText    string             `json:"best_text"`
	Reason      string             `json:"reason"`
	Scores      map[string]float64 `json:"scores"`
	Matrix      *Matrix            `json:"matrix,omitempty"`
	Valid       []string           `json:"valid"`
}

// Valid filters candidates that may vote, keeping order.
func Valid(candidates []models.Candidate) []models.Candidate {
	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

// Resolve runs the vote. Candidates must be in caller model order; that
// order breaks ties. With fewer than two valid candidates score is never
// called.
func Resolve(candidates []models.Candidate, score PairScorer) Outcome {
	valid := Valid(candidates)
	ids := make([]string, 0, len(valid))
	for _, c := range valid {
		ids = append(ids, c.ModelID)
	}
	switch len(valid) {
	case 0:
		return Outcome{BestText: NoValidAnswer, Reason: ReasonNoValid, Scores: map[string]float64{}, Valid: ids}
	case 1:
		return Outcome{
			BestModelID: valid[0].ModelID,
			BestText:    valid[0].Text,
			Reason:      ReasonSingleValid,
			Scores:      map[string]float64{},
			Valid:       ids,
		}
	}

	m := NewMatrix(ids)
	for i := 0; i < len(valid); i++ {
		for j := i + 1; j < len(valid); j++ {
			m.Set(i, j, similarity.Clamp(score(valid[i], valid[j])))
		}
	}
	scores := make(map[string]float64, len(valid))
	best := 0
	bestScore := m.RowMean(0)
	scores[ids[0]] = bestScore
	for i := 1; i < len(valid); i++ {
		s := m.RowMean(i)
		scores[ids[i]] = s
		if s > bestScore+tieEpsilon {
			best, bestScore = i, s
		}
	}
	return Outcome{
		BestModelID: ids[best],
		BestText:    valid[best].Text,
		Reason:      ReasonConsensus,
		Scores:      scores,
		Matrix:      m,
		Valid:       ids,
	}
}
