package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"docquorum/internal/util"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool

	schemaMu    sync.Mutex
	schemaReady bool
}

func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
  document_id UUID PRIMARY KEY,
  content_hash TEXT NOT NULL UNIQUE,
  filename TEXT NOT NULL,
  title TEXT,
  page_count INT NOT NULL DEFAULT 0,
  page_offset INT NOT NULL DEFAULT 0,
  status TEXT NOT NULL CHECK (status IN ('pending','ready','failed')),
  fail_reason TEXT,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sections (
  document_id UUID NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
  section_index INT NOT NULL,
  title TEXT NOT NULL,
  text TEXT NOT NULL,
  start_page INT NOT NULL,
  end_page INT NOT NULL,
  PRIMARY KEY (document_id, section_index)
);

CREATE TABLE IF NOT EXISTS consensus_runs (
  run_id TEXT PRIMARY KEY,
  kind TEXT NOT NULL CHECK (kind IN ('summarize','answer','reference')),
  document_id UUID REFERENCES documents(document_id) ON DELETE SET NULL,
  prompt TEXT NOT NULL DEFAULT '',
  models JSONB NOT NULL,
  best_model_id TEXT,
  reason TEXT,
  scores JSONB NOT NULL DEFAULT '{}'::jsonb,
  payload JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_consensus_runs_document ON consensus_runs(document_id, created_at DESC);

CREATE TABLE IF NOT EXISTS llm_calls (
  call_id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  operation TEXT NOT NULL,
  run_id TEXT,
  provider_name TEXT NOT NULL,
  model TEXT NOT NULL,
  status TEXT NOT NULL,
  error_kind TEXT,
  latency_ms BIGINT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_llm_calls_run ON llm_calls(run_id);
`

// EnsureSchema creates the tables on first use so a fresh database works
// without a separate migration step.
func (d *DB) EnsureSchema(ctx context.Context) error {
	d.schemaMu.Lock()
	defer d.schemaMu.Unlock()
	if d.schemaReady {
		return nil
	}
	if _, err := d.Pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	d.schemaReady = true
	return nil
}

// notFound maps pgx's empty-result error onto util.ErrNotFound.
func notFound(what string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, util.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}
