package scheduler

import (
	"fmt"
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus int

const (
	TaskPending      TaskStatus = iota // Waiting for dependencies or capacity
	TaskRunning                        // Currently executing
	TaskSuccess                        // Finished successfully (terminal)
	TaskFailed                         // Last attempt failed, retry decision pending
	TaskRetryPending                   // Retry granted, waiting to be requeued
	TaskFailedFinal                    // Failed with retries exhausted (terminal)
	TaskSkipped                        // Not run because an ancestor failed (terminal)
	TaskCancelled                      // Run cancelled or timed out before the task finished (terminal)
)

// String returns the canonical lowercase name used in logs, events and storage.
func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskSuccess:
		return "success"
	case TaskFailed:
		return "failed"
	case TaskRetryPending:
		return "retry_pending"
	case TaskFailedFinal:
		return "failed_final"
	case TaskSkipped:
		return "skipped"
	case TaskCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskSuccess, TaskFailedFinal, TaskSkipped, TaskCancelled:
		return true
	}
	return false
}

// taskTransitions is the set of legal task state transitions. Anything not
// listed here is rejected, which is what makes terminal states idempotent.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:      {TaskRunning, TaskSkipped, TaskCancelled},
	TaskRunning:      {TaskSuccess, TaskFailed, TaskCancelled},
	TaskFailed:       {TaskRetryPending, TaskFailedFinal, TaskCancelled},
	TaskRetryPending: {TaskPending, TaskCancelled},
}

func canTransition(from, to TaskStatus) bool {
	for _, allowed := range taskTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Task represents a unit of work in the DAG: one tool invocation by one agent.
type Task struct {
	ID          string         // Unique identifier within the run
	Agent       string         // Agent responsible for the task
	Action      string         // Named capability the agent invokes
	Description string         // Human-readable description
	DependsOn   []string       // Task IDs that must succeed before this task runs
	Input       map[string]any // Opaque payload passed to the tool
	Timeout     time.Duration  // Per-task timeout; 0 means no per-task bound

	Status     TaskStatus
	Attempts   int            // Number of attempts started
	Output     map[string]any // Opaque result from the tool
	LastError  string         // Message from the most recent failure
	StartedAt  time.Time      // First entry into TaskRunning
	FinishedAt time.Time      // Entry into a terminal state
}

// Snapshot is an immutable copy of a task's externally visible state,
// returned by status queries.
type Snapshot struct {
	ID         string
	Agent      string
	Action     string
	Status     TaskStatus
	Attempts   int
	Output     map[string]any
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

func (t *Task) snapshot() Snapshot {
	return Snapshot{
		ID:         t.ID,
		Agent:      t.Agent,
		Action:     t.Action,
		Status:     t.Status,
		Attempts:   t.Attempts,
		Output:     cloneMap(t.Output),
		Error:      t.LastError,
		StartedAt:  t.StartedAt,
		FinishedAt: t.FinishedAt,
	}
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	cp.Input = cloneMap(task.Input)
	cp.Output = cloneMap(task.Output)
	return &cp
}

// cloneMap shallow-copies payload maps. Payloads are opaque to the
// scheduler; nested values are passed through by reference.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
