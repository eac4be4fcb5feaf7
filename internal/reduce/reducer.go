package reduce

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docquorum/internal/models"
	"docquorum/internal/providers"
	"docquorum/internal/tokens"
	"docquorum/internal/util"
)

const (
	DefaultDirectTokenLimit = 4000
	DefaultWindowChars      = 8000
	Separator               = "\n\n---\n\n"
)

type Request struct {
	Text    string
	ModelID string
	// Label names the text in prompts, e.g. a section title.
	Label string
}

// Result is always populated; Status tells callers whether Text is a
// summary or a description of what went wrong.
type Result struct {
	Text         string        `json:"text"`
	Partials     []string      `json:"partials"`
	Status       models.Status `json:"status"`
	Direct       bool          `json:"direct"`
	Chunks       int           `json:"chunks"`
	FailedChunks []int         `json:"failed_chunks,omitempty"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	Err          error         `json:"-"`
}

func (r Result) OK() bool { return r.Status == models.StatusOK }

type Phase string

const (
	PhaseDirect    Phase = "direct"
	PhaseChunk     Phase = "chunk"
	PhaseSynthesis Phase = "synthesis"
)

// Event reports progress for one generation call.
type Event struct {
	ModelID string
	Phase   Phase
	Chunk   int
	Total   int
	Err     error
}

type Observer func(Event)

// Reducer summarizes text of any length with a bounded per-call input:
// short text goes out in one call, long text is split into fixed windows
// whose summaries are then synthesized.
type Reducer struct {
	Backend          providers.Backend
	Estimator        tokens.Estimator
	DirectTokenLimit int
	WindowChars      int
	Logger           *slog.Logger
	Observer         Observer
}

func New(b providers.Backend) *Reducer {
	return &Reducer{
		Backend:          b,
		Estimator:        tokens.NewHeuristic(),
		DirectTokenLimit: DefaultDirectTokenLimit,
		WindowChars:      DefaultWindowChars,
	}
}

func (r *Reducer) Reduce(ctx context.Context, req Request) Result {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		label = "the following text"
	}
	if r.Backend == nil {
		return failure(fmt.Errorf("summarize %s: %w", label, util.ErrNotConfigured), "No generation backend is configured.")
	}
	est := r.estimator().Estimate(req.Text, req.ModelID)
	if est <= r.directLimit() {
		return r.direct(ctx, req, label)
	}

	windows := util.Windows(req.Text, r.windowChars())
	if len(windows) == 0 {
		return failure(fmt.Errorf("summarize %s: no text to summarize", label), fmt.Sprintf("There is no text to summarize in %s.", label))
	}
	res := Result{Chunks: len(windows)}
	var lastErr error
	r.logger().Info("reducing oversized text", "model", req.ModelID, "label", label, "tokens", est, "chunks", len(windows))
	for i, w := range windows {
		prompt := fmt.Sprintf("This is part %d of %d of a larger document. Please summarize just this part:\n\n%s", i+1, len(windows), w)
		out, err := r.Backend.Complete(providers.WithOperation(ctx, "summarize_chunk"), req.ModelID, providers.UserPrompt(prompt))
		if err == nil && strings.TrimSpace(out) == "" {
			err = fmt.Errorf("empty summary for chunk %d", i+1)
		}
		r.notify(Event{ModelID: req.ModelID, Phase: PhaseChunk, Chunk: i + 1, Total: len(windows), Err: err})
		if err != nil {
			r.logger().Warn("chunk summary failed, skipping", "model", req.ModelID, "chunk", i+1, "of", len(windows), "error", err)
			res.FailedChunks = append(res.FailedChunks, i+1)
			lastErr = err
			continue
		}
		res.Partials = append(res.Partials, out)
	}

	if len(res.Partials) == 0 {
		fail := failure(
			fmt.Errorf("summarize %s: all %d chunks failed: %w", label, len(windows), lastErr),
			fmt.Sprintf("Summarizing %s failed because every one of its %d chunks returned an error. This is usually caused by provider rate limits.", label, len(windows)),
		)
		fail.Chunks = res.Chunks
		fail.FailedChunks = res.FailedChunks
		return fail
	}

	combined := strings.Join(res.Partials, Separator)
	prompt := fmt.Sprintf("The following are several partial summaries of %s. Synthesize them into one final, comprehensive summary:\n\n%s", label, combined)
	out, err := r.Backend.Complete(providers.WithOperation(ctx, "summarize_synthesis"), req.ModelID, providers.UserPrompt(prompt))
	if err == nil && strings.TrimSpace(out) == "" {
		err = fmt.Errorf("empty synthesis")
	}
	r.notify(Event{ModelID: req.ModelID, Phase: PhaseSynthesis, Total: len(windows), Err: err})
	if err != nil {
		fail := failure(fmt.Errorf("synthesize %s: %w", label, err), fmt.Sprintf("Final synthesis for %s failed: %v", label, err))
		fail.Partials = res.Partials
		fail.Chunks = res.Chunks
		fail.FailedChunks = res.FailedChunks
		return fail
	}
	res.Text = out
	res.Status = models.StatusOK
	return res
}

func (r *Reducer) direct(ctx context.Context, req Request, label string) Result {
	prompt := fmt.Sprintf("Please provide a concise summary of %s:\n\n%s", label, req.Text)
	out, err := r.Backend.Complete(providers.WithOperation(ctx, "summarize_direct"), req.ModelID, providers.UserPrompt(prompt))
	if err == nil && strings.TrimSpace(out) == "" {
		err = fmt.Errorf("empty summary")
	}
	r.notify(Event{ModelID: req.ModelID, Phase: PhaseDirect, Chunk: 1, Total: 1, Err: err})
	if err != nil {
		res := failure(fmt.Errorf("summarize %s: %w", label, err), fmt.Sprintf("Direct summarization of %s failed: %v", label, err))
		res.Direct = true
		return res
	}
	return Result{Text: out, Status: models.StatusOK, Direct: true, Chunks: 1}
}

func failure(err error, text string) Result {
	kind := providers.KindOf(err)
	return Result{Text: text, Status: models.StatusError, ErrorKind: string(kind), Err: err}
}

func (r *Reducer) notify(e Event) {
	if r.Observer != nil {
		r.Observer(e)
	}
}

func (r *Reducer) estimator() tokens.Estimator {
	if r.Estimator == nil {
		return tokens.NewHeuristic()
	}
	return r.Estimator
}

func (r *Reducer) directLimit() int {
	if r.DirectTokenLimit <= 0 {
		return DefaultDirectTokenLimit
	}
	return r.DirectTokenLimit
}

func (r *Reducer) windowChars() int {
	if r.WindowChars <= 0 {
		return DefaultWindowChars
	}
	return r.WindowChars
}

func (r *Reducer) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}
