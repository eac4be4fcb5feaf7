package activities

import (
	"context"
	"fmt"
	"strings"

	"docquorum/internal/engine"
	"docquorum/internal/models"
	"docquorum/internal/providers"
	"docquorum/internal/reduce"
	"docquorum/internal/refeval"
	"docquorum/internal/report"
	"docquorum/internal/similarity"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// SectionSource loads a stored document's sections.
type SectionSource interface {
	ListSections(ctx context.Context, documentID string) ([]models.Section, error)
}

type Activities struct {
	engine   *engine.Engine
	sections SectionSource
	recorder report.Sink
}

func New(eng *engine.Engine, sections SectionSource, recorder report.Sink) *Activities {
	return &Activities{engine: eng, sections: sections, recorder: recorder}
}

// PrepareRequestActivity fills in the text to summarize, or the context to
// answer from, out of the document's stored sections.
func (a *Activities) PrepareRequestActivity(ctx context.Context, in PrepareRequestInput) (PrepareRequestOutput, error) {
	req := in.Request
	if req.DocumentID == "" {
		return PrepareRequestOutput{Request: req}, nil
	}
	if a.sections == nil {
		return PrepareRequestOutput{}, temporal.NewNonRetryableApplicationError("no section store configured", "NotConfigured", nil)
	}
	secs, err := a.sections.ListSections(ctx, req.DocumentID)
	if err != nil {
		return PrepareRequestOutput{}, fmt.Errorf("load sections: %w", err)
	}
	if len(secs) == 0 {
		return PrepareRequestOutput{}, temporal.NewNonRetryableApplicationError("document has no sections", "NoSections", nil)
	}

	var sec *models.Section
	if in.SectionIndex != nil {
		i := *in.SectionIndex
		if i < 0 || i >= len(secs) {
			return PrepareRequestOutput{}, temporal.NewNonRetryableApplicationError(fmt.Sprintf("section %d out of range", i), "BadSection", nil)
		}
		sec = &secs[i]
	}

	switch req.Task {
	case models.TaskSummarize:
		if sec == nil {
			return PrepareRequestOutput{}, temporal.NewNonRetryableApplicationError("summarize needs a section", "BadSection", nil)
		}
		req.Text = sec.Text
		if req.Label == "" {
			req.Label = fmt.Sprintf("the section '%s'", sec.Title)
		}
	case models.TaskAnswer:
		if sec != nil {
			req.Context, req.Section = sec.Text, sec.Title
			break
		}
		p, err := a.engine.Retriever.FindContext(ctx, req.Question, secs)
		if err != nil {
			return PrepareRequestOutput{}, fmt.Errorf("find context: %w", err)
		}
		req.Context, req.Section = p.Text, p.Section.Title
		activity.GetLogger(ctx).Info("context selected", "section", p.Section.Title, "refined", p.Refined)
	}
	return PrepareRequestOutput{Request: req}, nil
}

// GenerateCandidateActivity runs one model. Model failures come back as a
// tagged candidate, not an activity error.
func (a *Activities) GenerateCandidateActivity(ctx context.Context, in GenerateCandidateInput) (GenerateCandidateOutput, error) {
	ctx = providers.WithCallTag(ctx, string(in.Request.Task), in.Request.RunID)
	c := a.engine.Consensus.Generate(ctx, in.Request, in.ModelID)
	activity.GetLogger(ctx).Info("candidate generated", "model", in.ModelID, "status", c.Status, "error_kind", c.ErrorKind)
	return GenerateCandidateOutput{Candidate: c}, nil
}

// SimilarityActivity scores one pair. Errors are returned so the retry
// policy applies; the workflow scores a pair that still fails as 0.
func (a *Activities) SimilarityActivity(ctx context.Context, in SimilarityInput) (SimilarityOutput, error) {
	s, err := a.engine.Oracle.Similarity(ctx, in.A, in.B)
	if err != nil {
		return SimilarityOutput{}, fmt.Errorf("similarity: %w", err)
	}
	return SimilarityOutput{Score: similarity.Clamp(s)}, nil
}

func (a *Activities) RecordRunActivity(ctx context.Context, in RecordRunInput) error {
	if a.recorder == nil {
		return nil
	}
	return a.recorder.Record(ctx, in.Result)
}

func (a *Activities) SummarizeForReferenceActivity(ctx context.Context, in SummarizeForReferenceInput) (SummarizeForReferenceOutput, error) {
	if strings.TrimSpace(in.Request.Reference) == "" {
		return SummarizeForReferenceOutput{}, temporal.NewNonRetryableApplicationError(refeval.ErrNoReference.Error(), "NoReference", nil)
	}
	ctx = providers.WithCallTag(ctx, string(models.TaskReference), in.Request.RunID)
	r := a.engine.Reference.Reducer.Reduce(ctx, reduce.Request{Text: in.Request.Text, ModelID: in.ModelID, Label: in.Request.Label})
	m := refeval.Score(in.ModelID, r, in.Request.Reference)
	activity.GetLogger(ctx).Info("reference summary scored", "model", in.ModelID, "status", m.Status, "rougeL", m.Rouge.RougeL.F)
	return SummarizeForReferenceOutput{Result: m}, nil
}

func (a *Activities) RecordReferenceActivity(ctx context.Context, in RecordReferenceInput) error {
	if a.recorder == nil {
		return nil
	}
	return a.recorder.RecordReference(ctx, in.Result)
}

