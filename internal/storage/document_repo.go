package storage

import (
	"context"
	"fmt"

	"docquorum/internal/models"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// UpsertDocument stores d keyed by content hash. Re-uploading the same
// bytes returns the id of the existing row.
func (r *DocumentRepo) UpsertDocument(ctx context.Context, d models.Document, contentHash string) (string, error) {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return "", err
	}
	var id string
	err := r.db.Pool.QueryRow(ctx, `
INSERT INTO documents (document_id, content_hash, filename, title, page_count, page_offset, status, fail_reason)
VALUES ($1, $2, $3, NULLIF($4,''), $5, $6, $7, NULLIF($8,''))
ON CONFLICT (content_hash)
DO UPDATE SET
  filename = EXCLUDED.filename,
  title = COALESCE(EXCLUDED.title, documents.title),
  page_count = EXCLUDED.page_count,
  page_offset = EXCLUDED.page_offset,
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  updated_at = NOW()
RETURNING document_id::text`,
		d.DocumentID, contentHash, d.Filename, d.Title, d.PageCount, d.PageOffset, d.Status, d.FailReason,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert document: %w", err)
	}
	return id, nil
}

func (r *DocumentRepo) GetDocument(ctx context.Context, documentID string) (models.Document, error) {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return models.Document{}, err
	}
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
SELECT document_id::text, filename, COALESCE(title,''), page_count, page_offset, status, COALESCE(fail_reason,''), created_at
FROM documents WHERE document_id=$1::uuid`, documentID).
		Scan(&d.DocumentID, &d.Filename, &d.Title, &d.PageCount, &d.PageOffset, &d.Status, &d.FailReason, &d.CreatedAt)
	if err != nil {
		return models.Document{}, notFound("get document", err)
	}
	return d, nil
}

// ReplaceSections swaps a document's sections in one transaction.
func (r *DocumentRepo) ReplaceSections(ctx context.Context, documentID string, sections []models.Section) error {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return err
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace sections: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM sections WHERE document_id=$1::uuid`, documentID); err != nil {
		return fmt.Errorf("clear sections: %w", err)
	}
	for _, s := range sections {
		_, err := tx.Exec(ctx, `
INSERT INTO sections (document_id, section_index, title, text, start_page, end_page)
VALUES ($1::uuid, $2, $3, $4, $5, $6)`,
			documentID, s.Index, s.Title, s.Text, s.StartPage, s.EndPage)
		if err != nil {
			return fmt.Errorf("insert section %d: %w", s.Index, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit sections tx: %w", err)
	}
	return nil
}

func (r *DocumentRepo) ListSections(ctx context.Context, documentID string) ([]models.Section, error) {
	if err := r.db.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := r.db.Pool.Query(ctx, `
SELECT document_id::text, section_index, title, text, start_page, end_page
FROM sections
WHERE document_id=$1::uuid
ORDER BY section_index ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()
	out := make([]models.Section, 0, 16)
	for rows.Next() {
		var s models.Section
		if err := rows.Scan(&s.DocumentID, &s.Index, &s.Title, &s.Text, &s.StartPage, &s.EndPage); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sections: %w", err)
	}
	return out, nil
}
