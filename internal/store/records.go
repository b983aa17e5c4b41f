package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a record lookup matches nothing.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when creating a record whose id already exists
// in the table.
var ErrDuplicate = errors.New("record already exists")

// Record is one row of a table-backed sub-service.
type Record struct {
	Table          string
	ID             string
	UserID         string
	OrganizationID string
	Data           map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Fields returns the record's data with its id merged in, the shape CRUD
// action results expose.
func (r Record) Fields(idName string) map[string]any {
	out := make(map[string]any, len(r.Data)+1)
	for k, v := range r.Data {
		out[k] = v
	}
	out[idName] = r.ID
	return out
}

// CreateRecord inserts a record. The caller supplies the id; generated CRUD
// actions mint a uuid when the payload carries none.
func (s *Store) CreateRecord(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (tbl, id, user_id, organization_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Table, rec.ID, rec.UserID, rec.OrganizationID, string(data), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create record %s/%s: %w", rec.Table, rec.ID, ErrDuplicate)
		}
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// GetRecord fetches one record by table and id.
func (s *Store) GetRecord(ctx context.Context, table, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tbl, id, user_id, organization_id, data, created_at, updated_at
		FROM records WHERE tbl = ? AND id = ?
	`, table, id)
	return scanRecord(row)
}

// ListRecords returns all records in a table, optionally scoped to an
// organization. Ordered by creation time for stable pagination upstream.
func (s *Store) ListRecords(ctx context.Context, table, organizationID string) ([]Record, error) {
	query := `
		SELECT tbl, id, user_id, organization_id, data, created_at, updated_at
		FROM records WHERE tbl = ?`
	args := []any{table}
	if organizationID != "" {
		query += ` AND organization_id = ?`
		args = append(args, organizationID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// UpdateRecord merges the given fields into the record's data.
func (s *Store) UpdateRecord(ctx context.Context, table, id string, fields map[string]any) (Record, error) {
	rec, err := s.GetRecord(ctx, table, id)
	if err != nil {
		return Record{}, err
	}

	if rec.Data == nil {
		rec.Data = map[string]any{}
	}
	for k, v := range fields {
		rec.Data[k] = v
	}

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return Record{}, fmt.Errorf("update record: %w", err)
	}

	rec.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE records SET data = ?, updated_at = ? WHERE tbl = ? AND id = ?
	`, string(data), rec.UpdatedAt.Format(time.RFC3339Nano), table, id)
	if err != nil {
		return Record{}, fmt.Errorf("update record: %w", err)
	}
	return rec, nil
}

// DeleteRecord removes a record. Deleting a missing record returns
// ErrNotFound so callers can distinguish it from success.
func (s *Store) DeleteRecord(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE tbl = ? AND id = ?`, table, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete record %s/%s: %w", table, id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var data, createdAt, updatedAt string

	err := row.Scan(&rec.Table, &rec.ID, &rec.UserID, &rec.OrganizationID, &data, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("scan record: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
		return Record{}, fmt.Errorf("scan record data: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return rec, nil
}

// isUniqueViolation detects a primary-key conflict without leaking the
// driver's error types to callers.
func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}
