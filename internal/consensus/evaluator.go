package consensus

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docquorum/internal/models"
	"docquorum/internal/providers"
	"docquorum/internal/qa"
	"docquorum/internal/reduce"
	"docquorum/internal/similarity"
	"docquorum/internal/util"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Request is one task to be answered by every model in Models.
type Request struct {
	RunID      string          `json:"run_id,omitempty"`
	DocumentID string          `json:"document_id,omitempty"`
	Task       models.TaskType `json:"task"`
	Models     []string        `json:"models"`

	// Summarize: Text is summarized; Label names it in prompts.
	Text  string `json:"text,omitempty"`
	Label string `json:"label,omitempty"`

	// Answer: Question is answered from Context, which came from Section.
	Question string `json:"question,omitempty"`
	Context  string `json:"context,omitempty"`
	Section  string `json:"section,omitempty"`
}

// Prompt is the human-facing theme of the request for reports.
func (r Request) Prompt() string {
	if r.Task == models.TaskAnswer {
		return r.Question
	}
	return r.Label
}

type Result struct {
	RunID       string             `json:"run_id"`
	DocumentID  string             `json:"document_id,omitempty"`
	Task        models.TaskType    `json:"task"`
	Prompt      string             `json:"prompt"`
	Models      []string           `json:"models"`
	BestModelID string             `json:"best_model_id,omitempty"`
	BestText    string             `json:"best_text"`
	Reason      string             `json:"reason"`
	Scores      map[string]float64 `json:"scores"`
	Ranking     []ModelScore       `json:"ranking"`
	Matrix      *Matrix            `json:"matrix,omitempty"`
	Candidates  []models.Candidate `json:"candidates"`
	OracleCalls int                `json:"oracle_calls"`
	OracleFails int                `json:"oracle_failures"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
}

// Run converts the result into its persisted form.
func (r Result) Run() models.ConsensusRun {
	run := models.ConsensusRun{
		RunID:       r.RunID,
		DocumentID:  r.DocumentID,
		Task:        r.Task,
		Prompt:      r.Prompt,
		Models:      r.Models,
		BestModelID: r.BestModelID,
		BestText:    r.BestText,
		Reason:      r.Reason,
		Scores:      r.Scores,
		Candidates:  r.Candidates,
		CreatedAt:   r.FinishedAt,
	}
	if r.Matrix != nil {
		run.Matrix = r.Matrix.Values
	}
	return run
}

// Recorder receives every finished evaluation. A failing recorder is
// logged and otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, res Result) error
}

type EventKind string

const (
	EventModelStarted  EventKind = "model_started"
	EventModelFinished EventKind = "model_finished"
	EventPairScored    EventKind = "pair_scored"
	EventDone          EventKind = "done"
)

type Event struct {
	Kind    EventKind     `json:"kind"`
	ModelID string        `json:"model_id,omitempty"`
	Other   string        `json:"other,omitempty"`
	Index   int           `json:"index"`
	Total   int           `json:"total"`
	Status  models.Status `json:"status,omitempty"`
	Score   float64       `json:"score,omitempty"`
}

type Observer func(Event)

// Evaluator fans a task out to several models and picks the answer the
// models agree on most.
type Evaluator struct {
	Reducer  *reduce.Reducer
	Answerer *qa.Answerer
	Oracle   similarity.Oracle
	Recorder Recorder
	Logger   *slog.Logger
	Observer Observer
	// ModelLimiter, when set, spaces the start of each model's task.
	ModelLimiter providers.Waiter
	// Concurrency bounds how many models run at once; 0 or 1 is sequential.
	// Above 1, Observer must be safe for concurrent use.
	Concurrency int
	Now         func() time.Time
}

// NewEvaluator wires a reducer and answerer over one backend.
func NewEvaluator(b providers.Backend, o similarity.Oracle) *Evaluator {
	return &Evaluator{Reducer: reduce.New(b), Answerer: qa.New(b), Oracle: o}
}

// Validate reports configuration faults that would make req impossible.
func (e *Evaluator) Validate(req Request) error {
	switch req.Task {
	case models.TaskSummarize:
		if e.Reducer == nil || e.Reducer.Backend == nil {
			return fmt.Errorf("summarize: %w", util.ErrNotConfigured)
		}
	case models.TaskAnswer:
		if e.Answerer == nil || e.Answerer.Backend == nil {
			return fmt.Errorf("answer: %w", util.ErrNotConfigured)
		}
		if strings.TrimSpace(req.Question) == "" {
			return fmt.Errorf("answer: question is required")
		}
	default:
		return ValidateTask(req.Task)
	}
	if e.Oracle == nil {
		return fmt.Errorf("similarity oracle: %w", util.ErrNotConfigured)
	}
	if err := ValidateModels(req.Models); err != nil {
		return err
	}
	if req.Task == models.TaskAnswer {
		return RequireConfigured(e.Answerer.Backend, req.Models)
	}
	return RequireConfigured(e.Reducer.Backend, req.Models)
}

// RequireConfigured fails when no model in ids resolves to a backend with
// credentials. Some unconfigured models are tolerated; they come back as
// tagged candidates.
func RequireConfigured(b providers.Backend, ids []string) error {
	for _, id := range ids {
		if providers.Configured(b, id) {
			return nil
		}
	}
	return fmt.Errorf("%w: no backend credentials for %s", util.ErrNotConfigured, strings.Join(ids, ", "))
}

// ValidateTask rejects task types the evaluator cannot run.
func ValidateTask(t models.TaskType) error {
	if t != models.TaskSummarize && t != models.TaskAnswer {
		return fmt.Errorf("%w: %q", util.ErrUnknownTask, t)
	}
	return nil
}

// ValidateModels rejects empty, blank and duplicate model ids.
func ValidateModels(ids []string) error {
	if len(ids) == 0 {
		return util.ErrNoModels
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%w: blank model id", util.ErrNoModels)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: %s", util.ErrDuplicateModel, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Evaluate returns an error only for configuration faults, before any
// model is called. Every other failure is folded into the result.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (Result, error) {
	if err := e.Validate(req); err != nil {
		return Result{}, err
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	ctx = providers.WithCallTag(ctx, string(req.Task), req.RunID)
	log := e.logger().With("run_id", req.RunID, "task", req.Task)

	res := Result{
		RunID:      req.RunID,
		DocumentID: req.DocumentID,
		Task:       req.Task,
		Prompt:     req.Prompt(),
		Models:     append([]string(nil), req.Models...),
		StartedAt:  e.now(),
	}
	log.Info("consensus evaluation started", "models", len(req.Models))
	res.Candidates = e.collect(ctx, req, log)

	total := len(Valid(res.Candidates))
	pairs, idx := total*(total-1)/2, 0
	outcome := Resolve(res.Candidates, func(a, b models.Candidate) float64 {
		idx++
		res.OracleCalls++
		s, err := e.Oracle.Similarity(ctx, a.Text, b.Text)
		if err != nil {
			res.OracleFails++
			log.Warn("similarity call failed, scoring pair as 0", "a", a.ModelID, "b", b.ModelID, "error", err)
			s = 0
		}
		e.notify(Event{Kind: EventPairScored, ModelID: a.ModelID, Other: b.ModelID, Index: idx, Total: pairs, Score: s})
		return s
	})
	res.BestModelID = outcome.BestModelID
	res.BestText = outcome.BestText
	res.Reason = outcome.Reason
	res.Scores = outcome.Scores
	res.Matrix = outcome.Matrix
	res.Ranking = Ranking(outcome.Valid, outcome.Scores)
	res.FinishedAt = e.now()
	e.notify(Event{Kind: EventDone, ModelID: res.BestModelID, Total: len(req.Models)})
	log.Info("consensus evaluation finished", "best_model", res.BestModelID, "reason", res.Reason, "valid", len(outcome.Valid), "oracle_failures", res.OracleFails)

	if e.Recorder != nil {
		if err := e.Recorder.Record(context.WithoutCancel(ctx), res); err != nil {
			log.Warn("recording consensus run failed", "error", err)
		}
	}
	return res, nil
}

// collect gathers one candidate per model, in model order.
func (e *Evaluator) collect(ctx context.Context, req Request, log *slog.Logger) []models.Candidate {
	out := make([]models.Candidate, len(req.Models))
	run := func(i int) {
		id := req.Models[i]
		if e.ModelLimiter != nil {
			if err := e.ModelLimiter.Wait(ctx); err != nil {
				out[i] = models.Candidate{ModelID: id, Status: models.StatusError, ErrorKind: string(providers.KindUnreachable), Text: fmt.Sprintf("Model %s was not called: %v", id, err), Detail: err.Error()}
				return
			}
		}
		e.notify(Event{Kind: EventModelStarted, ModelID: id, Index: i + 1, Total: len(req.Models)})
		out[i] = e.generate(ctx, req, id)
		if !out[i].Valid() {
			log.Warn("model produced no usable result", "model", id, "error_kind", out[i].ErrorKind, "detail", out[i].Detail)
		}
		e.notify(Event{Kind: EventModelFinished, ModelID: id, Index: i + 1, Total: len(req.Models), Status: out[i].Status})
	}

	if e.Concurrency <= 1 {
		for i := range req.Models {
			run(i)
		}
		return out
	}
	var g errgroup.Group
	g.SetLimit(e.Concurrency)
	for i := range req.Models {
		g.Go(func() error {
			run(i)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Generate runs the task for a single model. It is exported so durable
// workers can produce candidates one activity at a time.
func (e *Evaluator) Generate(ctx context.Context, req Request, modelID string) models.Candidate {
	return e.generate(providers.WithCallTag(ctx, string(req.Task), req.RunID), req, modelID)
}

func (e *Evaluator) generate(ctx context.Context, req Request, modelID string) models.Candidate {
	c := models.Candidate{ModelID: modelID}
	switch req.Task {
	case models.TaskSummarize:
		r := e.Reducer.Reduce(ctx, reduce.Request{Text: req.Text, ModelID: modelID, Label: req.Label})
		c.Text, c.Status, c.ErrorKind = r.Text, r.Status, r.ErrorKind
		if r.Err != nil {
			c.Detail = r.Err.Error()
		}
	case models.TaskAnswer:
		r := e.Answerer.Answer(ctx, qa.Request{Question: req.Question, Context: req.Context, Section: req.Section, ModelID: modelID})
		c.Text, c.Status, c.ErrorKind = r.Text, r.Status, r.ErrorKind
		if r.Err != nil {
			c.Detail = r.Err.Error()
		}
	default:
		c.Status = models.StatusError
		c.Text = fmt.Sprintf("Unsupported task %q.", req.Task)
	}
	if c.Status == models.StatusOK && strings.TrimSpace(c.Text) == "" {
		c.Status = models.StatusError
		c.Detail = "empty output"
	}
	return c
}

func (e *Evaluator) notify(ev Event) {
	if e.Observer != nil {
		e.Observer(ev)
	}
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
