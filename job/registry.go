package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/doccmp/dbopen"
)

// Registry persists comparison jobs in a single SQLite table. The job id
// primary key is the dedup key: submitting the same id twice fails with
// ErrDuplicateJob, and the result column is write-once, so each job id can
// complete at most one execution even if two workers race.
//
// Claiming uses a visibility window on next_attempt_at: a claimed job stays
// invisible for the configured duration, so a worker crash makes the job
// reappear instead of losing it.
type Registry struct {
	db         *sql.DB
	visibility time.Duration
	logger     *slog.Logger
}

// RegistryConfig configures the registry.
type RegistryConfig struct {
	// Visibility is how long a claimed job stays invisible to other
	// claimers. Must exceed the longest expected comparison. Default: 10m.
	Visibility time.Duration
	// Logger overrides slog.Default().
	Logger *slog.Logger
}

func (c *RegistryConfig) defaults() {
	if c.Visibility <= 0 {
		c.Visibility = 10 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

const registrySchema = `
	CREATE TABLE IF NOT EXISTS comparison_jobs (
		id               TEXT PRIMARY KEY,
		request          TEXT NOT NULL,
		phase            TEXT NOT NULL DEFAULT 'pending',
		progress         INTEGER NOT NULL DEFAULT 0,
		attempts         INTEGER NOT NULL DEFAULT 0,
		step             TEXT NOT NULL DEFAULT '',
		result           TEXT,
		error_class      TEXT NOT NULL DEFAULT '',
		error            TEXT NOT NULL DEFAULT '',
		cancel_requested INTEGER NOT NULL DEFAULT 0,
		created_at       INTEGER NOT NULL,
		started_at       INTEGER,
		completed_at     INTEGER,
		next_attempt_at  INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_comparison_jobs_claim
		ON comparison_jobs (phase, next_attempt_at);
`

// NewRegistry creates a registry and its schema.
func NewRegistry(db *sql.DB, cfg RegistryConfig) (*Registry, error) {
	cfg.defaults()
	if _, err := db.Exec(registrySchema); err != nil {
		return nil, fmt.Errorf("job: create schema: %w", err)
	}
	return &Registry{db: db, visibility: cfg.Visibility, logger: cfg.Logger}, nil
}

// Submit enqueues a comparison. A second submit with the same id returns
// ErrDuplicateJob; the stored job is untouched.
func (r *Registry) Submit(ctx context.Context, req Request) error {
	if req.ID == "" {
		return fmt.Errorf("job: submit: empty id")
	}
	req.Options.defaults()

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("job: marshal request: %w", err)
	}

	res, err := dbopen.Exec(ctx, r.db, `
		INSERT OR IGNORE INTO comparison_jobs (id, request, phase, created_at)
		VALUES (?, ?, ?, ?)
	`, req.ID, string(payload), PhasePending, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("job: insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("job: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", req.ID, ErrDuplicateJob)
	}

	r.logger.Info("job submitted", "job_id", req.ID,
		"source", req.SourceName, "target", req.TargetName)
	return nil
}

// Claimed is a job handed to a worker. Attempt is 1-based and counts this
// execution.
type Claimed struct {
	Request Request
	Attempt int
}

// Claim atomically picks the oldest runnable job, increments its attempt
// counter and hides it for the visibility window. Non-terminal jobs whose
// visibility expired are claimable again, so a worker crash re-delivers the
// job instead of losing it. Returns nil, nil when nothing is runnable.
func (r *Registry) Claim(ctx context.Context) (*Claimed, error) {
	now := time.Now()
	hideUntil := now.Add(r.visibility).UnixMilli()

	row := r.db.QueryRowContext(ctx, `
		UPDATE comparison_jobs
		SET attempts = attempts + 1, started_at = ?, next_attempt_at = ?
		WHERE id = (
			SELECT id FROM comparison_jobs
			WHERE phase NOT IN (?, ?) AND next_attempt_at <= ?
			ORDER BY created_at ASC
			LIMIT 1
		)
		RETURNING request, attempts`,
		now.UnixMilli(), hideUntil, PhaseCompleted, PhaseFailed, now.UnixMilli(),
	)

	var payload string
	var attempt int
	err := row.Scan(&payload, &attempt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("job: claim: %w", err)
	}

	var req Request
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return nil, fmt.Errorf("job: unmarshal request: %w", err)
	}
	return &Claimed{Request: req, Attempt: attempt}, nil
}

// SetPhase records the phase, progress and step label of a running job.
// Progress is monotonic and terminal phases are never overwritten.
func (r *Registry) SetPhase(ctx context.Context, id string, phase Phase, progress int, step string) error {
	_, err := dbopen.Exec(ctx, r.db, `
		UPDATE comparison_jobs
		SET phase = ?, progress = MAX(progress, ?), step = ?
		WHERE id = ? AND phase NOT IN (?, ?)
	`, phase, progress, step, id, PhaseCompleted, PhaseFailed)
	if err != nil {
		return fmt.Errorf("job: set phase: %w", err)
	}
	return nil
}

// Snapshot returns the current state of a job.
func (r *Registry) Snapshot(ctx context.Context, id string) (*Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, phase, progress, step, attempts, error_class, error,
			created_at, started_at, completed_at
		FROM comparison_jobs WHERE id = ?
	`, id)

	var s Snapshot
	var createdAt int64
	var startedAt, completedAt sql.NullInt64
	err := row.Scan(&s.ID, &s.Phase, &s.Progress, &s.StepLabel, &s.Attempts,
		&s.ErrorClass, &s.Error, &createdAt, &startedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("job: snapshot: %w", err)
	}

	s.CreatedAt = time.UnixMilli(createdAt)
	if startedAt.Valid {
		t := time.UnixMilli(startedAt.Int64)
		s.StartedAt = &t
	}
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64)
		s.CompletedAt = &t
	}
	return &s, nil
}

// Complete records the result of a successful execution. The result column
// is write-once: a second Complete for the same id returns
// ErrAlreadyComplete and leaves the stored result untouched.
func (r *Registry) Complete(ctx context.Context, id string, result *Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("job: marshal result: %w", err)
	}

	res, err := dbopen.Exec(ctx, r.db, `
		UPDATE comparison_jobs
		SET phase = ?, progress = ?, result = ?, completed_at = ?,
			error_class = '', error = ''
		WHERE id = ? AND result IS NULL
	`, PhaseCompleted, progressDone, string(payload), time.Now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("job: complete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("job: rows affected: %w", err)
	}
	if n == 0 {
		if _, snapErr := r.Snapshot(ctx, id); snapErr != nil {
			return snapErr
		}
		return fmt.Errorf("job %s: %w", id, ErrAlreadyComplete)
	}

	r.logger.Info("job completed", "job_id", id)
	return nil
}

// Fail marks a job terminally failed with its last error. Completed jobs
// are never demoted.
func (r *Registry) Fail(ctx context.Context, id, class, msg string) error {
	res, err := dbopen.Exec(ctx, r.db, `
		UPDATE comparison_jobs
		SET phase = ?, error_class = ?, error = ?, completed_at = ?
		WHERE id = ? AND phase != ?
	`, PhaseFailed, class, msg, time.Now().UnixMilli(), id, PhaseCompleted)
	if err != nil {
		return fmt.Errorf("job: fail: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("job: rows affected: %w", err)
	}
	if n == 0 {
		if _, snapErr := r.Snapshot(ctx, id); snapErr != nil {
			return snapErr
		}
		return fmt.Errorf("job %s: %w", id, ErrAlreadyComplete)
	}

	r.logger.Warn("job failed", "job_id", id, "class", class, "error", msg)
	return nil
}

// Retry sends a job back to pending, runnable again after delay. The error
// is recorded so pollers can see what the last attempt hit.
func (r *Registry) Retry(ctx context.Context, id string, delay time.Duration, class, msg string) error {
	_, err := dbopen.Exec(ctx, r.db, `
		UPDATE comparison_jobs
		SET phase = ?, next_attempt_at = ?, error_class = ?, error = ?
		WHERE id = ? AND phase NOT IN (?, ?)
	`, PhasePending, time.Now().Add(delay).UnixMilli(), class, msg,
		id, PhaseCompleted, PhaseFailed)
	if err != nil {
		return fmt.Errorf("job: retry: %w", err)
	}
	return nil
}

// Result returns the stored success payload. (nil, nil) means the job
// exists but has no result yet; look at the Snapshot for its phase.
func (r *Registry) Result(ctx context.Context, id string) (*Result, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT result FROM comparison_jobs WHERE id = ?`, id)

	var payload sql.NullString
	err := row.Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("job: result: %w", err)
	}
	if !payload.Valid {
		return nil, nil
	}

	var result Result
	if err := json.Unmarshal([]byte(payload.String), &result); err != nil {
		return nil, fmt.Errorf("job: unmarshal result: %w", err)
	}
	return &result, nil
}

// RequestCancel flags a non-terminal job for cancellation. The runner
// honours the flag at step boundaries; a job already finalizing or terminal
// keeps its outcome, in which case ErrAlreadyComplete is returned.
func (r *Registry) RequestCancel(ctx context.Context, id string) error {
	res, err := dbopen.Exec(ctx, r.db, `
		UPDATE comparison_jobs
		SET cancel_requested = 1
		WHERE id = ? AND phase NOT IN (?, ?)
	`, id, PhaseCompleted, PhaseFailed)
	if err != nil {
		return fmt.Errorf("job: request cancel: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("job: rows affected: %w", err)
	}
	if n == 0 {
		if _, snapErr := r.Snapshot(ctx, id); snapErr != nil {
			return snapErr
		}
		return fmt.Errorf("job %s: %w", id, ErrAlreadyComplete)
	}

	r.logger.Info("job cancellation requested", "job_id", id)
	return nil
}

// Cancelled reports whether cancellation was requested for a job.
func (r *Registry) Cancelled(ctx context.Context, id string) (bool, error) {
	var flag int
	err := r.db.QueryRowContext(ctx,
		`SELECT cancel_requested FROM comparison_jobs WHERE id = ?`, id,
	).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("job: cancelled: %w", err)
	}
	return flag != 0, nil
}

// Counts returns the number of jobs per phase, for health reporting.
func (r *Registry) Counts(ctx context.Context) (map[Phase]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT phase, COUNT(*) FROM comparison_jobs GROUP BY phase`)
	if err != nil {
		return nil, fmt.Errorf("job: counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Phase]int)
	for rows.Next() {
		var phase Phase
		var n int
		if err := rows.Scan(&phase, &n); err != nil {
			return nil, fmt.Errorf("job: counts scan: %w", err)
		}
		counts[phase] = n
	}
	return counts, rows.Err()
}
