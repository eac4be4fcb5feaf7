// Package report persists the audit trail of consensus and reference runs.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docquorum/internal/consensus"
	"docquorum/internal/refeval"
)

const timestampLayout = "20060102_150405"

// Sink receives both kinds of finished run.
type Sink interface {
	consensus.Recorder
	refeval.Recorder
}

// Multi fans a run out to every sink. All sinks are attempted; their
// errors are joined.
type Multi []Sink

func (m Multi) Record(ctx context.Context, res consensus.Result) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) RecordReference(ctx context.Context, res refeval.Result) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.RecordReference(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Render formats a consensus run as the plain-text audit report.
func Render(res consensus.Result, ts time.Time) string {
	var b strings.Builder
	b.WriteString("--- Consensus Evaluation Report ---\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", ts.Format(timestampLayout))
	fmt.Fprintf(&b, "Run ID: %s\n", res.RunID)
	fmt.Fprintf(&b, "Task Type: %s\n", strings.ToUpper(string(res.Task)))
	fmt.Fprintf(&b, "Prompt/Theme: %s\n", res.Prompt)
	fmt.Fprintf(&b, "Decision: %s\n\n", res.Reason)

	best := res.BestModelID
	if best == "" {
		best = "none"
	}
	fmt.Fprintf(&b, "--- BEST RESULT (from %s) ---\n%s\n\n", best, res.BestText)

	b.WriteString("--- Consensus Scores ---\n")
	ranking := res.Ranking
	if ranking == nil {
		ranking = consensus.Ranking(res.Models, res.Scores)
	}
	for _, s := range ranking {
		fmt.Fprintf(&b, "- %s: %.4f\n", s.ModelID, s.Score)
	}
	if res.OracleFails > 0 {
		fmt.Fprintf(&b, "(%d of %d similarity calls failed and were scored 0)\n", res.OracleFails, res.OracleCalls)
	}

	b.WriteString("\n--- Pairwise Similarity Matrix ---\n")
	b.WriteString(res.Matrix.String())
	b.WriteString("\n--- All Model Outputs ---\n")
	for _, c := range res.Candidates {
		fmt.Fprintf(&b, "\n--- Output from %s ---\n", c.ModelID)
		if !c.Valid() {
			fmt.Fprintf(&b, "[%s %s] ", c.Status, c.ErrorKind)
		}
		b.WriteString(c.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderReference formats a reference evaluation as plain text.
func RenderReference(res refeval.Result, ts time.Time) string {
	var b strings.Builder
	b.WriteString("--- Reference Evaluation Report ---\n")
	fmt.Fprintf(&b, "Timestamp: %s\n", ts.Format(timestampLayout))
	fmt.Fprintf(&b, "Run ID: %s\n", res.RunID)
	fmt.Fprintf(&b, "Theme: %s\n\n", res.Label)

	best := res.BestModelID
	if best == "" {
		best = "none"
	}
	fmt.Fprintf(&b, "--- BEST MODEL by ROUGE-L (%s) ---\n\n", best)
	b.WriteString("--- ROUGE Scores ---\n")
	for _, m := range res.Results {
		if !m.Valid() {
			fmt.Fprintf(&b, "- %s: skipped (%s)\n", m.ModelID, m.ErrorKind)
			continue
		}
		fmt.Fprintf(&b, "- %s: rouge1=%.4f rouge2=%.4f rougeL=%.4f", m.ModelID, m.Rouge.Rouge1.F, m.Rouge.Rouge2.F, m.Rouge.RougeL.F)
		if m.Similarity != nil {
			fmt.Fprintf(&b, " similarity=%.4f", *m.Similarity)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\n--- Reference ---\n%s\n", res.Reference)
	b.WriteString("\n--- All Model Summaries ---\n")
	for _, m := range res.Results {
		fmt.Fprintf(&b, "\n--- Summary from %s ---\n", m.ModelID)
		if m.Valid() {
			b.WriteString(m.Summary)
		} else {
			b.WriteString(m.Detail)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
