package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/appforge/internal/scheduler"
)

// SaveRun saves or updates a run row. Uses ON CONFLICT to make saves
// idempotent: the controller calls this at creation and again at completion.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *scheduler.Run) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var settings scheduler.Settings
	if run.Plan != nil {
		settings = run.Plan.Settings
	}

	retryFailed := 0
	if settings.RetryFailed {
		retryFailed = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, status, error, max_parallel, retry_failed, max_retries, total_timeout_secs, created_at, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`, run.ID, run.Status.String(), run.Error,
		settings.MaxParallel, retryFailed, settings.MaxRetries, int(settings.TotalTimeout/time.Second),
		encodeTime(run.CreatedAt), encodeTime(run.StartedAt), encodeTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID. The returned run carries its settings in a
// minimal Plan; tasks are loaded separately via GetTasks.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*scheduler.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, error, max_parallel, retry_failed, max_retries, total_timeout_secs, created_at, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, most recently created first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]*scheduler.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, error, max_parallel, retry_failed, max_retries, total_timeout_secs, created_at, started_at, finished_at
		FROM runs
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*scheduler.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*scheduler.Run, error) {
	run := &scheduler.Run{}
	var statusName string
	var errorStr sql.NullString
	var retryFailed, totalTimeoutSecs int
	var settings scheduler.Settings
	var createdAt, startedAt, finishedAt sql.NullString

	err := row.Scan(&run.ID, &statusName, &errorStr,
		&settings.MaxParallel, &retryFailed, &settings.MaxRetries, &totalTimeoutSecs,
		&createdAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	run.Status, err = parseRunStatus(statusName)
	if err != nil {
		return nil, err
	}
	run.Error = errorStr.String

	settings.RetryFailed = retryFailed != 0
	settings.TotalTimeout = time.Duration(totalTimeoutSecs) * time.Second
	run.Plan = &scheduler.Plan{Settings: settings}

	if run.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if run.StartedAt, err = decodeTime(startedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = decodeTime(finishedAt); err != nil {
		return nil, err
	}

	return run, nil
}

// SaveTransitions appends state transition log entries for a run.
func (s *SQLiteStore) SaveTransitions(ctx context.Context, runID string, transitions []scheduler.Transition) error {
	if len(transitions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, tr := range transitions {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_transitions (run_id, task_id, from_status, to_status, note, at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, tr.TaskID, tr.From, tr.To, tr.Note, encodeTime(tr.At))
		if err != nil {
			return fmt.Errorf("failed to insert transition: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTransitions retrieves a run's transition log in insertion order.
func (s *SQLiteStore) GetTransitions(ctx context.Context, runID string) ([]scheduler.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_id, from_status, to_status, note, at
		FROM task_transitions
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var transitions []scheduler.Transition
	for rows.Next() {
		var tr scheduler.Transition
		var at sql.NullString
		if err := rows.Scan(&tr.TaskID, &tr.From, &tr.To, &tr.Note, &at); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		if tr.At, err = decodeTime(at); err != nil {
			return nil, err
		}
		transitions = append(transitions, tr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}

	return transitions, nil
}
