package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the three ways a plan can be malformed. Wrapped by
// PlanError so callers can match with errors.Is.
var (
	ErrDuplicateTaskID   = errors.New("duplicate task id")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrCyclicDependency  = errors.New("cyclic dependency")
)

// PlanError describes why a plan was rejected before execution.
// Plan errors are fatal: the run is created already failed and no task is
// ever dispatched.
type PlanError struct {
	Kind   error    // One of the sentinel errors above
	TaskID string   // Offending task, when attributable to a single task
	Detail string   // Extra context (e.g. the missing dependency id)
	Cycle  []string // For ErrCyclicDependency: the cycle as task ids, first repeated last
}

func (e *PlanError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrCyclicDependency) && len(e.Cycle) > 0:
		return fmt.Sprintf("%v: %s", e.Kind, strings.Join(e.Cycle, " -> "))
	case e.TaskID != "" && e.Detail != "":
		return fmt.Sprintf("%v: task %q %s", e.Kind, e.TaskID, e.Detail)
	case e.TaskID != "":
		return fmt.Sprintf("%v: task %q", e.Kind, e.TaskID)
	default:
		return e.Kind.Error()
	}
}

func (e *PlanError) Unwrap() error { return e.Kind }
