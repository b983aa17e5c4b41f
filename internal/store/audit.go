package store

import (
	"context"
	"fmt"
	"time"
)

// ExecutionRecord is one row of the unified-execution audit trail.
type ExecutionRecord struct {
	ID         string
	Service    string
	Action     string
	Status     bool
	ErrorID    string
	DurationMs int64
	CreatedAt  time.Time
}

// WriteExecution appends one audit row. Duplicate ids are silently ignored
// so retried writes stay idempotent.
func (s *Store) WriteExecution(ctx context.Context, rec ExecutionRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (id, service, action, status, error_id, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rec.ID, rec.Service, rec.Action, rec.Status, rec.ErrorID, rec.DurationMs,
		createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("write execution: %w", err)
	}
	return nil
}

// ListExecutions returns the most recent audit rows for a service, newest
// first, up to limit.
func (s *Store) ListExecutions(ctx context.Context, service string, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, service, action, status, error_id, duration_ms, created_at
		FROM executions WHERE service = ?
		ORDER BY created_at DESC LIMIT ?
	`, service, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var recs []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.Service, &rec.Action, &rec.Status,
			&rec.ErrorID, &rec.DurationMs, &createdAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
