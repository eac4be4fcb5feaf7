package providers

import (
	"context"
	"log/slog"
	"time"
)

// CallRecord is one generation attempt as written to the audit log.
type CallRecord struct {
	Operation string
	RunID     string
	ModelID   string
	Status    string
	ErrorKind string
	Latency   time.Duration
}

type CallLogger interface {
	LogCall(ctx context.Context, rec CallRecord) error
}

type callTagKey struct{}

type callTag struct {
	operation string
	runID     string
}

// WithCallTag labels generation calls made with ctx for the audit log.
func WithCallTag(ctx context.Context, operation, runID string) context.Context {
	return context.WithValue(ctx, callTagKey{}, callTag{operation: operation, runID: runID})
}

// WithOperation relabels the operation, keeping any run id already set.
func WithOperation(ctx context.Context, operation string) context.Context {
	tag, _ := ctx.Value(callTagKey{}).(callTag)
	tag.operation = operation
	return context.WithValue(ctx, callTagKey{}, tag)
}

func callTagFrom(ctx context.Context) callTag {
	tag, _ := ctx.Value(callTagKey{}).(callTag)
	return tag
}

// Audited records every call made through the wrapped backend. Logging
// failures are reported and never change the call's outcome.
type Audited struct {
	Backend Backend
	Calls   CallLogger
	Logger  *slog.Logger
	Now     func() time.Time
}

func (a *Audited) Configured(modelID string) bool { return Configured(a.Backend, modelID) }

func (a *Audited) Complete(ctx context.Context, modelID string, messages []Message) (string, error) {
	now := a.Now
	if now == nil {
		now = time.Now
	}
	start := now()
	text, err := a.Backend.Complete(ctx, modelID, messages)
	tag := callTagFrom(ctx)
	rec := CallRecord{
		Operation: tag.operation,
		RunID:     tag.runID,
		ModelID:   modelID,
		Status:    "ok",
		Latency:   now().Sub(start),
	}
	if err != nil {
		rec.Status = "error"
		rec.ErrorKind = string(KindOf(err))
	}
	if a.Calls != nil {
		if lerr := a.Calls.LogCall(context.WithoutCancel(ctx), rec); lerr != nil && a.Logger != nil {
			a.Logger.Warn("llm call audit failed", "model", modelID, "error", lerr)
		}
	}
	return text, err
}
