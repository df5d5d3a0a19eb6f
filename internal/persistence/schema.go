package persistence

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		error TEXT,
		max_parallel INTEGER NOT NULL,
		retry_failed INTEGER NOT NULL,
		max_retries INTEGER NOT NULL,
		total_timeout_secs INTEGER NOT NULL,
		created_at TEXT,
		started_at TEXT,
		finished_at TEXT
	);

	CREATE TABLE IF NOT EXISTS run_tasks (
		run_id TEXT NOT NULL,
		id TEXT NOT NULL,
		agent TEXT NOT NULL,
		action TEXT NOT NULL,
		description TEXT,
		depends_on TEXT,
		input TEXT,
		timeout_secs INTEGER NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		output TEXT,
		last_error TEXT,
		started_at TEXT,
		finished_at TEXT,
		PRIMARY KEY (run_id, id),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_run_tasks_run_id ON run_tasks(run_id);

	CREATE TABLE IF NOT EXISTS task_transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		task_id TEXT,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		note TEXT,
		at TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_task_transitions_run
		ON task_transitions(run_id, id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
