package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docquorum/internal/models"
	"docquorum/internal/providers"
	"docquorum/internal/tokens"
)

const (
	DefaultDistillTokenLimit = 4000
	DefaultDistillChars      = 16000

	systemPrompt = "You are a strict, factual Q&A engine. Your task is to answer questions using only the provided text."
)

type Request struct {
	Question string
	Context  string
	// Section names where Context came from; used in prompts and in the
	// not-found reply.
	Section string
	ModelID string
}

type Result struct {
	Text      string        `json:"text"`
	Status    models.Status `json:"status"`
	Distilled bool          `json:"distilled"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Err       error         `json:"-"`
}

func (r Result) OK() bool { return r.Status == models.StatusOK }

// Answerer answers a question from one section of a document. Context over
// the distill limit is first reduced to the question-relevant parts.
type Answerer struct {
	Backend           providers.Backend
	Estimator         tokens.Estimator
	DistillTokenLimit int
	DistillChars      int
	Logger            *slog.Logger
}

func New(b providers.Backend) *Answerer {
	return &Answerer{
		Backend:           b,
		Estimator:         tokens.NewHeuristic(),
		DistillTokenLimit: DefaultDistillTokenLimit,
		DistillChars:      DefaultDistillChars,
	}
}

// NotFound is the exact reply expected when the context has no answer.
func NotFound(section string) string {
	return fmt.Sprintf("The answer to that question is not found in the '%s' section.", section)
}

func (a *Answerer) Answer(ctx context.Context, req Request) Result {
	section := strings.TrimSpace(req.Section)
	if section == "" {
		section = "document"
	}
	if a.Backend == nil {
		return Result{Text: "No generation backend is configured.", Status: models.StatusError, ErrorKind: string(providers.KindNotConfigured)}
	}
	contextText := req.Context
	distilled := false
	if a.estimator().Estimate(contextText, req.ModelID) > a.distillLimit() {
		prompt := fmt.Sprintf("From the following text (from section '%s'), extract ONLY the information directly relevant to answering this question: %q\n\nTEXT:\n%s",
			section, req.Question, headRunes(contextText, a.distillChars()))
		out, err := a.Backend.Complete(providers.WithOperation(ctx, "answer_distill"), req.ModelID, providers.UserPrompt(prompt))
		if err != nil {
			a.logger().Warn("context distillation failed", "model", req.ModelID, "section", section, "error", err)
			return failure(fmt.Errorf("distill context: %w", err), fmt.Sprintf("Distilling the '%s' section failed: %v", section, err))
		}
		contextText = out
		distilled = true
	}

	prompt := fmt.Sprintf(`Based strictly on the context provided from document section '%s', answer the user's question.
- If the answer is found in the context, provide only the answer.
- If the answer is NOT found in the context, respond with only the phrase: "%s"
Do not add any conversational text or explanations.

CONTEXT:
---
%s
---
QUESTION: %s`, section, NotFound(section), contextText, req.Question)
	out, err := a.Backend.Complete(providers.WithOperation(ctx, "answer"), req.ModelID, []providers.Message{
		{Role: providers.RoleSystem, Content: systemPrompt},
		{Role: providers.RoleUser, Content: prompt},
	})
	if err == nil && strings.TrimSpace(out) == "" {
		err = fmt.Errorf("empty answer")
	}
	if err != nil {
		res := failure(fmt.Errorf("answer question: %w", err), fmt.Sprintf("Answering from the '%s' section failed: %v", section, err))
		res.Distilled = distilled
		return res
	}
	return Result{Text: strings.TrimSpace(out), Status: models.StatusOK, Distilled: distilled}
}

func failure(err error, text string) Result {
	return Result{Text: text, Status: models.StatusError, ErrorKind: string(providers.KindOf(err)), Err: err}
}

func headRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (a *Answerer) estimator() tokens.Estimator {
	if a.Estimator == nil {
		return tokens.NewHeuristic()
	}
	return a.Estimator
}

func (a *Answerer) distillLimit() int {
	if a.DistillTokenLimit <= 0 {
		return DefaultDistillTokenLimit
	}
	return a.DistillTokenLimit
}

func (a *Answerer) distillChars() int {
	if a.DistillChars <= 0 {
		return DefaultDistillChars
	}
	return a.DistillChars
}

func (a *Answerer) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.Logger
}
