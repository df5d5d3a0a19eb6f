package scheduler

import (
	"fmt"
	"time"
)

// RunStatus represents the state of one run as a whole.
type RunStatus int

const (
	RunInProgress     RunStatus = iota // Tasks still pending or running
	RunSuccess                         // Every task succeeded
	RunPartialFailure                  // Some tasks succeeded, others failed or were skipped
	RunFailed                          // No task succeeded, or the plan was rejected
	RunTimedOut                        // Total timeout expired before completion
	RunCancelled                       // Explicitly cancelled
)

// String returns the canonical lowercase name used in logs, events and storage.
func (s RunStatus) String() string {
	switch s {
	case RunInProgress:
		return "in_progress"
	case RunSuccess:
		return "success"
	case RunPartialFailure:
		return "partial_failure"
	case RunFailed:
		return "failed"
	case RunTimedOut:
		return "timed_out"
	case RunCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Terminal reports whether the run has finished.
func (s RunStatus) Terminal() bool { return s != RunInProgress }

// Run is the record of one execution of a plan.
type Run struct {
	ID         string
	Plan       *Plan
	Status     RunStatus
	Error      string // Plan validation error, when the run failed before starting
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// Transition is one entry in a run's state change log. TaskID is empty for
// run-level transitions.
type Transition struct {
	TaskID string
	From   string
	To     string
	Note   string
	At     time.Time
}

// RunSnapshot is the status query result: the run-level state plus a
// snapshot per task, in plan order.
type RunSnapshot struct {
	ID          string
	Status      RunStatus
	Error       string
	CreatedAt   time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
	Tasks       []Snapshot
	Transitions []Transition
}

// Counts aggregates task states for progress reporting.
type Counts struct {
	Total     int
	Pending   int
	Running   int
	Succeeded int
	Failed    int
	Skipped   int
	Cancelled int
}
