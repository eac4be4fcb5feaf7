package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"docquorum/internal/pacing"
)

func TestPacedSpacesCalls(t *testing.T) {
	clk := pacing.NewFakeClock(time.Unix(0, 0))
	calls := 0
	p := NewPaced(BackendFunc(func(context.Context, string, []Message) (string, error) {
		calls++
		return "x", nil
	}), pacing.NewLimiter(10*time.Second, clk))
	for i := 0; i < 3; i++ {
		if _, err := p.Complete(context.Background(), "m", UserPrompt("x")); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls got %d", calls)
	}
	if got := len(clk.Sleeps()); got != 2 {
		t.Fatalf("expected 2 waits got %d", got)
	}
}

type recordingCalls struct {
	recs []CallRecord
	err  error
}

func (r *recordingCalls) LogCall(_ context.Context, rec CallRecord) error {
	r.recs = append(r.recs, rec)
	return r.err
}

func TestAuditedRecordsOutcome(t *testing.T) {
	calls := &recordingCalls{err: errors.New("db down")}
	a := &Audited{
		Backend: BackendFunc(func(_ context.Context, modelID string, _ []Message) (string, error) {
			if modelID == "bad" {
				return "", newError(KindInvalidModel, "groq", modelID, errors.New("nope"))
			}
			return "fine", nil
		}),
		Calls: calls,
	}
	ctx := WithCallTag(context.Background(), "summarize", "run-1")
	if out, err := a.Complete(ctx, "good", nil); err != nil || out != "fine" {
		t.Fatalf("audit failure must not change result: %q %v", out, err)
	}
	if _, err := a.Complete(WithOperation(ctx, "synthesize"), "bad", nil); err == nil {
		t.Fatalf("expected backend error to pass through")
	}
	if len(calls.recs) != 2 {
		t.Fatalf("expected 2 records got %d", len(calls.recs))
	}
	if calls.recs[0].Status != "ok" || calls.recs[0].Operation != "summarize" || calls.recs[0].RunID != "run-1" {
		t.Fatalf("unexpected first record %+v", calls.recs[0])
	}
	if calls.recs[1].Status != "error" || calls.recs[1].ErrorKind != string(KindInvalidModel) || calls.recs[1].Operation != "synthesize" || calls.recs[1].RunID != "run-1" {
		t.Fatalf("unexpected second record %+v", calls.recs[1])
	}
}
