package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docquorum/internal/consensus"
	"docquorum/internal/models"
	"docquorum/internal/refeval"
)

// RunRecord is a stored run. Payload holds the full result as JSON.
type RunRecord struct {
	RunID       string          `json:"run_id"`
	Kind        string          `json:"kind"`
	DocumentID  string          `json:"document_id,omitempty"`
	Prompt      string          `json:"prompt"`
	BestModelID string          `json:"best_model_id,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RunRepo persists consensus and reference runs.
type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) Record(ctx context.Context, res consensus.Result) error {
	run := res.Run()
	return r.insert(ctx, run.RunID, string(run.Task), run.DocumentID, run.Prompt, run.Models, run.BestModelID, run.Reason, run.Scores, res)
}

func (r *RunRepo) RecordReference(ctx context.Context, res refeval.Result) error {
	scores := make(map[string]float64, len(res.Results))
	for _, m := range res.Scored() {
		scores[m.ModelID] = m.Rouge.RougeL.F
	}
	return r.insert(ctx, res.RunID, string(models.TaskReference), res.DocumentID, res.Label, res.Models, res.BestModelID, "", scores, res)
}

func (r *RunRepo) insert(ctx context.Context, runID, kind, documentID, prompt string, modelIDs []string, best, reason string, scores map[string]float64, payload any) error {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return err
	}
	modelJSON, err := json.Marshal(modelIDs)
	if err != nil {
		return fmt.Errorf("marshal run models: %w", err)
	}
	scoreJSON, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("marshal run scores: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal run payload: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, `
INSERT INTO consensus_runs (run_id, kind, document_id, prompt, models, best_model_id, reason, scores, payload)
VALUES ($1, $2, NULLIF($3,'')::uuid, $4, $5::jsonb, NULLIF($6,''), NULLIF($7,''), $8::jsonb, $9::jsonb)
ON CONFLICT (run_id)
DO UPDATE SET
  best_model_id = EXCLUDED.best_model_id,
  reason = EXCLUDED.reason,
  scores = EXCLUDED.scores,
  payload = EXCLUDED.payload`,
		runID, kind, documentID, prompt, string(modelJSON), best, reason, string(scoreJSON), string(body))
	if err != nil {
		return fmt.Errorf("insert consensus run: %w", err)
	}
	return nil
}

func (r *RunRepo) GetRun(ctx context.Context, runID string) (RunRecord, error) {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return RunRecord{}, err
	}
	var rec RunRecord
	var payload []byte
	err := r.db.Pool.QueryRow(ctx, `
SELECT run_id, kind, COALESCE(document_id::text,''), prompt, COALESCE(best_model_id,''), COALESCE(reason,''), payload, created_at
FROM consensus_runs WHERE run_id=$1`, runID).
		Scan(&rec.RunID, &rec.Kind, &rec.DocumentID, &rec.Prompt, &rec.BestModelID, &rec.Reason, &payload, &rec.CreatedAt)
	if err != nil {
		return RunRecord{}, notFound("get consensus run", err)
	}
	rec.Payload = payload
	return rec, nil
}

func (r *RunRepo) ListRuns(ctx context.Context, documentID string, limit int) ([]RunRecord, error) {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT run_id, kind, COALESCE(document_id::text,''), prompt, COALESCE(best_model_id,''), COALESCE(reason,''), created_at
FROM consensus_runs
WHERE ($1 = '' OR document_id = NULLIF($1,'')::uuid)
ORDER BY created_at DESC
LIMIT $2`, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list consensus runs: %w", err)
	}
	defer rows.Close()
	out := make([]RunRecord, 0)
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.RunID, &rec.Kind, &rec.DocumentID, &rec.Prompt, &rec.BestModelID, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan consensus run: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consensus runs: %w", err)
	}
	return out, nil
}
