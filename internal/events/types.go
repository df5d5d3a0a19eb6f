package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	RunID() string
	TaskID() string
}

// Topic constants
const (
	TopicRun  = "run"
	TopicTask = "task"
)

// Event type constants
const (
	EventTypeRunStarted    = "run.started"
	EventTypeRunProgress   = "run.progress"
	EventTypeRunCompleted  = "run.completed"
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskSucceeded = "task.succeeded"
	EventTypeTaskFailed    = "task.failed"
	EventTypeTaskRetrying  = "task.retrying"
	EventTypeTaskSkipped   = "task.skipped"
	EventTypeTaskCancelled = "task.cancelled"
)

// RunStartedEvent is published when a validated run begins execution.
type RunStartedEvent struct {
	Run         string
	TaskCount   int
	MaxParallel int
	Timestamp   time.Time
}

func (e RunStartedEvent) EventType() string { return EventTypeRunStarted }
func (e RunStartedEvent) RunID() string     { return e.Run }
func (e RunStartedEvent) TaskID() string    { return "" }

// RunProgressEvent is published whenever task counts change.
type RunProgressEvent struct {
	Run       string
	Total     int
	Pending   int
	Running   int
	Succeeded int
	Failed    int
	Skipped   int
	Cancelled int
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) RunID() string     { return e.Run }
func (e RunProgressEvent) TaskID() string    { return "" }

// RunCompletedEvent is published when a run reaches a terminal state.
type RunCompletedEvent struct {
	Run       string
	Status    string
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

func (e RunCompletedEvent) EventType() string { return EventTypeRunCompleted }
func (e RunCompletedEvent) RunID() string     { return e.Run }
func (e RunCompletedEvent) TaskID() string    { return "" }

// TaskStartedEvent is published when a task attempt begins execution.
type TaskStartedEvent struct {
	Run       string
	ID        string
	Agent     string
	Action    string
	Attempt   int
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) RunID() string     { return e.Run }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskSucceededEvent is published when a task completes successfully.
type TaskSucceededEvent struct {
	Run       string
	ID        string
	Attempt   int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskSucceededEvent) EventType() string { return EventTypeTaskSucceeded }
func (e TaskSucceededEvent) RunID() string     { return e.Run }
func (e TaskSucceededEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task attempt fails. Final is true once
// retries are exhausted and the task will not run again.
type TaskFailedEvent struct {
	Run       string
	ID        string
	Attempt   int
	Err       string
	Final     bool
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) RunID() string     { return e.Run }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskRetryingEvent is published when a failed task is granted a retry.
type TaskRetryingEvent struct {
	Run       string
	ID        string
	Attempt   int           // Attempts completed so far
	Delay     time.Duration // Wait before the task is requeued
	Timestamp time.Time
}

func (e TaskRetryingEvent) EventType() string { return EventTypeTaskRetrying }
func (e TaskRetryingEvent) RunID() string     { return e.Run }
func (e TaskRetryingEvent) TaskID() string    { return e.ID }

// TaskSkippedEvent is published when a task is skipped because an ancestor
// failed. Cause is the id of the failed dependency.
type TaskSkippedEvent struct {
	Run       string
	ID        string
	Cause     string
	Timestamp time.Time
}

func (e TaskSkippedEvent) EventType() string { return EventTypeTaskSkipped }
func (e TaskSkippedEvent) RunID() string     { return e.Run }
func (e TaskSkippedEvent) TaskID() string    { return e.ID }

// TaskCancelledEvent is published when a task is cancelled by run
// cancellation or total timeout.
type TaskCancelledEvent struct {
	Run       string
	ID        string
	Timestamp time.Time
}

func (e TaskCancelledEvent) EventType() string { return EventTypeTaskCancelled }
func (e TaskCancelledEvent) RunID() string     { return e.Run }
func (e TaskCancelledEvent) TaskID() string    { return e.ID }
