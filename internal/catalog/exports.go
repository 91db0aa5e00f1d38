package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ExportRecord is the outcome of one exported item.
type ExportRecord struct {
	ID         int64     `json:"id"`
	BatchID    string    `json:"batch_id"`
	SourcePath string    `json:"source_path"`
	DestPath   string    `json:"dest_path"`
	Outcome    string    `json:"outcome"`
	Bytes      int64     `json:"bytes"`
	Deleted    bool      `json:"deleted"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecordExport appends an export outcome.
func (s *Store) RecordExport(ctx context.Context, rec ExportRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	deleted := 0
	if rec.Deleted {
		deleted = 1
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO exports (batch_id, source_path, dest_path, outcome, bytes, deleted, error_message, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BatchID, rec.SourcePath, rec.DestPath, rec.Outcome, rec.Bytes, deleted,
		nullableString(rec.Error), formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("record export: %w", err)
	}
	return nil
}

// ListExports returns the most recent export outcomes first.
func (s *Store) ListExports(ctx context.Context, limit int) ([]ExportRecord, error) {
	query := `SELECT id, batch_id, source_path, dest_path, outcome, bytes, deleted, error_message, created_at
        FROM exports ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var out []ExportRecord
	for rows.Next() {
		var (
			rec       ExportRecord
			deleted   int
			errText   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.BatchID, &rec.SourcePath, &rec.DestPath, &rec.Outcome,
			&rec.Bytes, &deleted, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		rec.Deleted = deleted != 0
		rec.Error = errText.String
		rec.CreatedAt = parseTime(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
