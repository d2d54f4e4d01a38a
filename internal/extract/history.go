package extract

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLiteHistory persists job rows, upserted on every status change, so
// past runs survive restarts and an interrupted drain leaves
// non-terminal rows for the startup repair.
type SQLiteHistory struct {
	db *sql.DB
}

func NewSQLiteHistory(db *sql.DB) *SQLiteHistory {
	return &SQLiteHistory{db: db}
}

func (h *SQLiteHistory) Record(ctx context.Context, job Job) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO jobs (id, video, output_name, start_time, end_time, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, job.ID, job.Video, job.OutputName, job.Start, job.End,
		string(job.Status), job.Error,
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		job.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

// List returns the most recent jobs, newest first.
func (h *SQLiteHistory) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, video, output_name, start_time, end_time, status, error, created_at, updated_at
		FROM jobs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			job                  Job
			status               string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&job.ID, &job.Video, &job.OutputName, &job.Start, &job.End,
			&status, &job.Error, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Status = Status(status)
		job.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
