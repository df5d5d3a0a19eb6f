package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/appforge/internal/scheduler"
)

// Statuses are stored by their canonical string names so rows stay readable
// in ad-hoc queries and stable across reordering of the Go constants.

var taskStatusNames = map[string]scheduler.TaskStatus{
	scheduler.TaskPending.String():      scheduler.TaskPending,
	scheduler.TaskRunning.String():      scheduler.TaskRunning,
	scheduler.TaskSuccess.String():      scheduler.TaskSuccess,
	scheduler.TaskFailed.String():       scheduler.TaskFailed,
	scheduler.TaskRetryPending.String(): scheduler.TaskRetryPending,
	scheduler.TaskFailedFinal.String():  scheduler.TaskFailedFinal,
	scheduler.TaskSkipped.String():      scheduler.TaskSkipped,
	scheduler.TaskCancelled.String():    scheduler.TaskCancelled,
}

var runStatusNames = map[string]scheduler.RunStatus{
	scheduler.RunInProgress.String():     scheduler.RunInProgress,
	scheduler.RunSuccess.String():        scheduler.RunSuccess,
	scheduler.RunPartialFailure.String(): scheduler.RunPartialFailure,
	scheduler.RunFailed.String():         scheduler.RunFailed,
	scheduler.RunTimedOut.String():       scheduler.RunTimedOut,
	scheduler.RunCancelled.String():      scheduler.RunCancelled,
}

func parseTaskStatus(name string) (scheduler.TaskStatus, error) {
	status, ok := taskStatusNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown task status %q", name)
	}
	return status, nil
}

func parseRunStatus(name string) (scheduler.RunStatus, error) {
	status, ok := runStatusNames[name]
	if !ok {
		return 0, fmt.Errorf("unknown run status %q", name)
	}
	return status, nil
}

// encodeTime stores a timestamp as RFC3339Nano; the zero time becomes NULL.
func encodeTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

func decodeTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s.String)
}

// encodePayload marshals an opaque payload map; nil maps become NULL.
func encodePayload(m map[string]any) (sql.NullString, error) {
	if m == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding payload: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodePayload(s sql.NullString) (map[string]any, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return m, nil
}
