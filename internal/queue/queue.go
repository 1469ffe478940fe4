package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue is the durable admission queue for pipeline runs. Uploads enqueue one
// run per workspace; pipeline workers dequeue them one at a time.
type Queue struct {
	db *sql.DB
}

func New(db *sql.DB) *Queue {
	return &Queue{db: db}
}

func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (string, error) {
	if req.WorkspaceID == "" {
		return "", fmt.Errorf("workspace_id is empty")
	}
	if req.Language == "" {
		return "", fmt.Errorf("language is empty")
	}
	if req.SubmittedBy == "" {
		return "", fmt.Errorf("submitted_by is empty")
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := q.db.ExecContext(ctx, `
INSERT INTO run_queue(id, workspace_id, language, status, submitted_by, created_at)
VALUES(?, ?, ?, ?, ?, ?);
`, id, req.WorkspaceID, req.Language, StatusQueued, req.SubmittedBy, now)
	if err != nil {
		return "", fmt.Errorf("enqueue run: %w", err)
	}
	return id, nil
}

// Dequeue claims the oldest queued run and marks it running. Returns (nil, nil)
// if the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (*Run, error) {
	nowS := time.Now().UTC().Format(time.RFC3339Nano)

	row := q.db.QueryRowContext(ctx, `
WITH next AS (
  SELECT id
  FROM run_queue
  WHERE status = ?
  ORDER BY created_at ASC, rowid ASC
  LIMIT 1
)
UPDATE run_queue
SET status = ?, started_at = ?
WHERE id IN (SELECT id FROM next)
RETURNING id, workspace_id, language, status, submitted_by, created_at, started_at, completed_at, last_error;
`, StatusQueued, StatusRunning, nowS)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue run: %w", err)
	}
	return r, nil
}

// Complete marks a run terminal and appends a row to run_log.
func (q *Queue) Complete(ctx context.Context, runID string, status Status, lastError *string) error {
	if runID == "" {
		return fmt.Errorf("runID is empty")
	}
	if status != StatusSucceeded && status != StatusFailed {
		return fmt.Errorf("invalid terminal status: %q", status)
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		workspaceID string
		language    string
		submittedBy string
		createdAt   string
	)
	if err := tx.QueryRowContext(ctx, `
SELECT workspace_id, language, submitted_by, created_at
FROM run_queue
WHERE id = ?;
`, runID).Scan(&workspaceID, &language, &submittedBy, &createdAt); err != nil {
		return fmt.Errorf("load run for completion: %w", err)
	}

	completedAt := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = tx.ExecContext(ctx, `
UPDATE run_queue
SET status = ?, completed_at = ?, last_error = ?
WHERE id = ?;
`, status, completedAt, lastError, runID)
	if err != nil {
		return fmt.Errorf("update run completion: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO run_log(id, workspace_id, language, status, submitted_by, created_at, completed_at, last_error)
VALUES(?, ?, ?, ?, ?, ?, ?, ?);
`, runID, workspaceID, language, status, submittedBy, createdAt, completedAt, lastError)
	if err != nil {
		return fmt.Errorf("insert run_log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID returns a single run.
func (q *Queue) GetByID(ctx context.Context, runID string) (*Run, error) {
	row := q.db.QueryRowContext(ctx, `
SELECT id, workspace_id, language, status, submitted_by, created_at, started_at, completed_at, last_error
FROM run_queue
WHERE id = ?;
`, runID)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// Depth returns the number of queued runs awaiting a worker.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_queue WHERE status = ?;`, StatusQueued).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

func scanRun(row *sql.Row) (*Run, error) {
	var (
		r            Run
		statusS      string
		createdAtS   string
		startedAtS   sql.NullString
		completedAtS sql.NullString
		lastError    sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.WorkspaceID, &r.Language, &statusS, &r.SubmittedBy,
		&createdAtS, &startedAtS, &completedAtS, &lastError,
	)
	if err != nil {
		return nil, err
	}

	r.Status = Status(statusS)
	if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		r.CreatedAt = t
	}
	if startedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, startedAtS.String); err == nil {
			r.StartedAt = &t
		}
	}
	if completedAtS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completedAtS.String); err == nil {
			r.CompletedAt = &t
		}
	}
	if lastError.Valid {
		r.LastError = &lastError.String
	}
	return &r, nil
}
