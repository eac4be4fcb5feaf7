package storage

import (
	"context"
	"fmt"

	"docquorum/internal/providers"
)

type LLMAuditRepo struct {
	db *DB
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db}
}

// LogCall stores one generation attempt. The model id is split into its
// provider and bare model name.
func (r *LLMAuditRepo) LogCall(ctx context.Context, rec providers.CallRecord) error {
	ref := providers.ParseModelRef(rec.ModelID, "")
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO llm_calls(operation, run_id, provider_name, model, status, error_kind, latency_ms)
VALUES ($1, NULLIF($2,''), $3, $4, $5, NULLIF($6,''), $7)`,
		rec.Operation, rec.RunID, ref.Provider, ref.Model, rec.Status, rec.ErrorKind, rec.Latency.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}

// CallStats is the per-model tally of audited calls for one run.
type CallStats struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Calls    int    `json:"calls"`
	Failures int    `json:"failures"`
	AvgMS    int64  `json:"avg_ms"`
}

func (r *LLMAuditRepo) StatsForRun(ctx context.Context, runID string) ([]CallStats, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT provider_name, model, COUNT(*), COUNT(*) FILTER (WHERE status <> 'ok'), COALESCE(AVG(latency_ms),0)::bigint
FROM llm_calls
WHERE run_id=$1
GROUP BY provider_name, model
ORDER BY provider_name, model`, runID)
	if err != nil {
		return nil, fmt.Errorf("llm call stats: %w", err)
	}
	defer rows.Close()
	out := make([]CallStats, 0)
	for rows.Next() {
		var s CallStats
		if err := rows.Scan(&s.Provider, &s.Model, &s.Calls, &s.Failures, &s.AvgMS); err != nil {
			return nil, fmt.Errorf("scan llm call stats: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate llm call stats: %w", err)
	}
	return out, nil
}
