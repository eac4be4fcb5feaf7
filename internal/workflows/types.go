package workflows

import (
	"docquorum/internal/consensus"
	"docquorum/internal/refeval"
)

type ConsensusInput struct {
	Request consensus.Request `json:"request"`
	// SectionIndex picks a stored section of Request.DocumentID.
	SectionIndex *int `json:"section_index,omitempty"`
	// Pacing between model calls and between oracle calls. Zero uses the
	// defaults; negative disables the pause.
	ModelGapSeconds int `json:"model_gap_seconds,omitempty"`
	OracleGapMillis int `json:"oracle_gap_millis,omitempty"`
}

type ReferenceInput struct {
	Request         refeval.Request `json:"request"`
	UseOracle       bool            `json:"use_oracle"`
	GraphThreshold  float64         `json:"graph_threshold,omitempty"`
	ModelGapSeconds int             `json:"model_gap_seconds,omitempty"`
	OracleGapMillis int             `json:"oracle_gap_millis,omitempty"`
}

type Phase string

const (
	PhasePrepare  Phase = "prepare"
	PhaseGenerate Phase = "generate"
	PhaseScore    Phase = "score"
	PhaseRecord   Phase = "record"
	PhaseDone     Phase = "done"
)

// Progress is what the progress query returns while a run is in flight.
type Progress struct {
	RunID       string            `json:"run_id"`
	Phase       Phase             `json:"phase"`
	ModelsTotal int               `json:"models_total"`
	ModelsDone  int               `json:"models_done"`
	PerModel    map[string]string `json:"per_model"`
	PairsTotal  int               `json:"pairs_total"`
	PairsDone   int               `json:"pairs_done"`
	BestModelID string            `json:"best_model_id,omitempty"`
}
