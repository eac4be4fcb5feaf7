package activities

import (
	"docquorum/internal/consensus"
	"docquorum/internal/models"
	"docquorum/internal/refeval"
)

// PrepareRequestInput names a stored section to work on. For answer runs
// with no section the best one is found from the question.
type PrepareRequestInput struct {
	Request      consensus.Request `json:"request"`
	SectionIndex *int              `json:"section_index,omitempty"`
}

type PrepareRequestOutput struct {
	Request consensus.Request `json:"request"`
}

type GenerateCandidateInput struct {
	Request consensus.Request `json:"request"`
	ModelID string            `json:"model_id"`
}

type GenerateCandidateOutput struct {
	Candidate models.Candidate `json:"candidate"`
}

type SimilarityInput struct {
	A string `json:"a"`
	B string `json:"b"`
}

type SimilarityOutput struct {
	Score float64 `json:"score"`
}

type RecordRunInput struct {
	Result consensus.Result `json:"result"`
}

type SummarizeForReferenceInput struct {
	Request refeval.Request `json:"request"`
	ModelID string          `json:"model_id"`
}

type SummarizeForReferenceOutput struct {
	Result refeval.ModelResult `json:"result"`
}

type RecordReferenceInput struct {
	Result refeval.Result `json:"result"`
}
