package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/appforge/internal/scheduler"
)

// SaveTask saves or updates a task row within a run.
// Uses ON CONFLICT to make saves idempotent; the scheduler calls this on
// every task state change.
func (s *SQLiteStore) SaveTask(ctx context.Context, runID string, task *scheduler.Task) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	input, err := encodePayload(task.Input)
	if err != nil {
		return err
	}
	output, err := encodePayload(task.Output)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO run_tasks (run_id, id, agent, action, description, depends_on, input, timeout_secs, status, attempts, output, last_error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, id) DO UPDATE SET
			status = excluded.status,
			attempts = excluded.attempts,
			output = excluded.output,
			last_error = excluded.last_error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`, runID, task.ID, task.Agent, task.Action, task.Description,
		strings.Join(task.DependsOn, ","), input, int(task.Timeout/time.Second),
		task.Status.String(), task.Attempts, output, task.LastError,
		encodeTime(task.StartedAt), encodeTime(task.FinishedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetTasks returns all tasks of a run in their original insertion order,
// which is plan order because the controller records tasks before execution
// starts and upserts preserve rowids.
func (s *SQLiteStore) GetTasks(ctx context.Context, runID string) ([]*scheduler.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent, action, description, depends_on, input, timeout_secs, status, attempts, output, last_error, started_at, finished_at
		FROM run_tasks
		WHERE run_id = ?
		ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*scheduler.Task
	for rows.Next() {
		task := &scheduler.Task{}
		var dependsOn, statusName string
		var input, output sql.NullString
		var timeoutSecs int
		var startedAt, finishedAt sql.NullString

		err := rows.Scan(&task.ID, &task.Agent, &task.Action, &task.Description,
			&dependsOn, &input, &timeoutSecs, &statusName, &task.Attempts,
			&output, &task.LastError, &startedAt, &finishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		if dependsOn != "" {
			task.DependsOn = strings.Split(dependsOn, ",")
		}
		task.Timeout = time.Duration(timeoutSecs) * time.Second

		if task.Status, err = parseTaskStatus(statusName); err != nil {
			return nil, err
		}
		if task.Input, err = decodePayload(input); err != nil {
			return nil, err
		}
		if task.Output, err = decodePayload(output); err != nil {
			return nil, err
		}
		if task.StartedAt, err = decodeTime(startedAt); err != nil {
			return nil, err
		}
		if task.FinishedAt, err = decodeTime(finishedAt); err != nil {
			return nil, err
		}

		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}
