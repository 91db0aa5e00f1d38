package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// JobStatus mirrors the transcode job lifecycle.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// interruptedMessage marks jobs that were running when the previous process exited.
const interruptedMessage = "interrupted: appliance restarted while job was running"

// Job is one transcode attempt.
type Job struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"session_id,omitempty"`
	SourcePath      string     `json:"source_path"`
	DestPath        string     `json:"dest_path"`
	DurationSeconds float64    `json:"duration_seconds"`
	TotalFrames     int64      `json:"total_frames"`
	FPS             float64    `json:"fps"`
	Status          JobStatus  `json:"status"`
	Progress        int        `json:"progress"`
	Error           string     `json:"error,omitempty"`
	RetryOf         string     `json:"retry_of,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// InsertJob records a newly started job.
func (s *Store) InsertJob(ctx context.Context, job Job) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.Status == "" {
		job.Status = JobRunning
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO jobs (
            id, session_id, source_path, dest_path, duration_seconds, total_frames, fps,
            status, progress, error_message, retry_of, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		nullableString(job.SessionID),
		job.SourcePath,
		job.DestPath,
		job.DurationSeconds,
		job.TotalFrames,
		job.FPS,
		string(job.Status),
		job.Progress,
		nullableString(job.Error),
		nullableString(job.RetryOf),
		formatTime(job.CreatedAt),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJobProbe stores the probed frame count and chosen rate.
func (s *Store) UpdateJobProbe(ctx context.Context, id string, totalFrames int64, fps float64) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE jobs SET total_frames = ?, fps = ?, updated_at = ? WHERE id = ?`,
		totalFrames, fps, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update job probe: %w", err)
	}
	return nil
}

// UpdateJobProgress stores the latest percent for a running job.
func (s *Store) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ? AND status = ?`,
		progress, formatTime(time.Now()), id, string(JobRunning),
	)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// FinishJob moves a job to a terminal status.
func (s *Store) FinishJob(ctx context.Context, id string, status JobStatus, progress int, errText string) error {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, progress = ?, error_message = ?, updated_at = ?, finished_at = ? WHERE id = ?`,
		string(status), progress, nullableString(errText), now, now, id,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish job %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkInterrupted fails every job still marked running. It is called once at
// startup, before any new job can be inserted.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ?, finished_at = ? WHERE status = ?`,
		string(JobFailed), interruptedMessage, now, now, string(JobRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

const jobColumns = `id, session_id, source_path, dest_path, duration_seconds, total_frames, fps,
    status, progress, error_message, retry_of, created_at, updated_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job                          Job
		sessionID, errText, retryOf  sql.NullString
		status, createdAt, updatedAt string
		finishedAt                   sql.NullString
	)
	if err := row.Scan(
		&job.ID, &sessionID, &job.SourcePath, &job.DestPath, &job.DurationSeconds, &job.TotalFrames, &job.FPS,
		&status, &job.Progress, &errText, &retryOf, &createdAt, &updatedAt, &finishedAt,
	); err != nil {
		return Job{}, err
	}
	job.SessionID = sessionID.String
	job.Error = errText.String
	job.RetryOf = retryOf.String
	job.Status = JobStatus(status)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		job.FinishedAt = &t
	}
	return job, nil
}

// GetJob returns the job with id.
func (s *Store) GetJob(ctx context.Context, id string) (Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns the most recent jobs first. A non-positive limit returns all.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
