// Package refeval scores every model's summary against a human-written
// reference summary.
package refeval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docquorum/internal/consensus"
	"docquorum/internal/models"
	"docquorum/internal/providers"
	"docquorum/internal/reduce"
	"docquorum/internal/rouge"
	"docquorum/internal/similarity"
	"docquorum/internal/util"

	"github.com/google/uuid"
)

var ErrNoReference = errors.New("reference summary is required")

type Request struct {
	RunID      string   `json:"run_id,omitempty"`
	DocumentID string   `json:"document_id,omitempty"`
	Models     []string `json:"models"`
	Text       string   `json:"text"`
	Label      string   `json:"label,omitempty"`
	Reference  string   `json:"reference"`
}

// ModelResult is one model's summary and how it compares to the reference.
type ModelResult struct {
	ModelID   string        `json:"model_id"`
	Summary   string        `json:"summary"`
	Status    models.Status `json:"status"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Rouge     rouge.Scores  `json:"rouge"`
	// Similarity to the reference from the oracle; nil when no oracle is
	// configured or the call failed.
	Similarity *float64 `json:"similarity,omitempty"`
}

func (m ModelResult) Valid() bool { return m.Status == models.StatusOK }

type Result struct {
	RunID       string           `json:"run_id"`
	DocumentID  string           `json:"document_id,omitempty"`
	Label       string           `json:"label,omitempty"`
	Reference   string           `json:"reference"`
	Models      []string         `json:"models"`
	BestModelID string           `json:"best_model_id,omitempty"`
	Results     []ModelResult    `json:"results"`
	Graph       *consensus.Graph `json:"graph,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
}

// Scored returns the results that produced a summary.
func (r Result) Scored() []ModelResult {
	var out []ModelResult
	for _, m := range r.Results {
		if m.Valid() {
			out = append(out, m)
		}
	}
	return out
}

type Recorder interface {
	RecordReference(ctx context.Context, res Result) error
}

type Evaluator struct {
	Reducer *reduce.Reducer
	// Oracle is optional. When set, each summary is also compared with the
	// reference and a reference graph is built.
	Oracle         similarity.Oracle
	Recorder       Recorder
	ModelLimiter   providers.Waiter
	GraphThreshold float64
	Logger         *slog.Logger
	Now            func() time.Time
}

func New(b providers.Backend) *Evaluator {
	return &Evaluator{Reducer: reduce.New(b), GraphThreshold: consensus.DefaultReferenceThreshold}
}

func (e *Evaluator) Validate(req Request) error {
	if e.Reducer == nil || e.Reducer.Backend == nil {
		return fmt.Errorf("reference evaluation: %w", util.ErrNotConfigured)
	}
	if strings.TrimSpace(req.Reference) == "" {
		return ErrNoReference
	}
	if err := consensus.ValidateModels(req.Models); err != nil {
		return err
	}
	return consensus.RequireConfigured(e.Reducer.Backend, req.Models)
}

// Evaluate summarizes req.Text with every model and ranks the summaries by
// ROUGE-L against the reference. Failed summaries are reported but never
// scored.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (Result, error) {
	if err := e.Validate(req); err != nil {
		return Result{}, err
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	ctx = providers.WithCallTag(ctx, string(models.TaskReference), req.RunID)
	log := e.logger().With("run_id", req.RunID, "task", models.TaskReference)
	res := Result{
		RunID:      req.RunID,
		DocumentID: req.DocumentID,
		Label:      req.Label,
		Reference:  req.Reference,
		Models:     append([]string(nil), req.Models...),
		StartedAt:  e.now(),
	}
	log.Info("reference evaluation started", "models", len(req.Models))

	for _, id := range req.Models {
		if e.ModelLimiter != nil {
			if err := e.ModelLimiter.Wait(ctx); err != nil {
				res.Results = append(res.Results, ModelResult{ModelID: id, Status: models.StatusError, ErrorKind: string(providers.KindUnreachable), Detail: err.Error()})
				continue
			}
		}
		r := e.Reducer.Reduce(ctx, reduce.Request{Text: req.Text, ModelID: id, Label: req.Label})
		m := Score(id, r, req.Reference)
		if !m.Valid() {
			log.Warn("summary skipped", "model", id, "error_kind", m.ErrorKind, "detail", m.Detail)
		} else if e.Oracle != nil {
			s, err := e.Oracle.Similarity(ctx, m.Summary, req.Reference)
			if err != nil {
				log.Warn("reference similarity failed", "model", id, "error", err)
			} else {
				s = similarity.Clamp(s)
				m.Similarity = &s
			}
		}
		res.Results = append(res.Results, m)
	}

	res.BestModelID = Best(res.Results)
	if e.Oracle != nil {
		g := e.graph(res.Results)
		res.Graph = &g
	}
	res.FinishedAt = e.now()
	log.Info("reference evaluation finished", "best_model", res.BestModelID, "scored", len(res.Scored()))

	if e.Recorder != nil {
		if err := e.Recorder.RecordReference(context.WithoutCancel(ctx), res); err != nil {
			log.Warn("recording reference run failed", "error", err)
		}
	}
	return res, nil
}

// Score turns a reducer result into a scored model result.
func Score(modelID string, r reduce.Result, reference string) ModelResult {
	m := ModelResult{ModelID: modelID, Summary: r.Text, Status: r.Status, ErrorKind: r.ErrorKind}
	if r.Err != nil {
		m.Detail = r.Err.Error()
	}
	if m.Valid() && strings.TrimSpace(m.Summary) == "" {
		m.Status = models.StatusError
		m.Detail = "empty output"
	}
	if m.Valid() {
		m.Rouge = rouge.Compute(m.Summary, reference)
	}
	return m
}

// Best returns the model with the highest ROUGE-L F-measure. Ties go to
// the earlier model; "" when nothing was scored.
func Best(results []ModelResult) string {
	best, top := "", -1.0
	for _, m := range results {
		if !m.Valid() {
			continue
		}
		if m.Rouge.RougeL.F > top {
			best, top = m.ModelID, m.Rouge.RougeL.F
		}
	}
	return best
}

// ReferenceGraph builds the star graph from the oracle similarities.
func ReferenceGraph(results []ModelResult, threshold float64) consensus.Graph {
	ids := make([]string, 0, len(results))
	sims := map[string]float64{}
	for _, m := range results {
		if !m.Valid() {
			continue
		}
		ids = append(ids, m.ModelID)
		if m.Similarity != nil {
			sims[m.ModelID] = *m.Similarity
		}
	}
	return consensus.ReferenceGraph(ids, sims, threshold)
}

func (e *Evaluator) graph(results []ModelResult) consensus.Graph {
	t := e.GraphThreshold
	if t <= 0 {
		t = consensus.DefaultReferenceThreshold
	}
	return ReferenceGraph(results, t)
}

func (e *Evaluator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Evaluator) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}
