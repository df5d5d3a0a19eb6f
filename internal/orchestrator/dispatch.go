package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/aristath/appforge/internal/scheduler"
	"github.com/aristath/appforge/internal/tools"
)

// OutcomeKind classifies how a dispatch ended.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
	OutcomeTimeout
)

// String returns the canonical lowercase name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Outcome is the result of dispatching one task attempt.
type Outcome struct {
	Kind   OutcomeKind
	Output map[string]any
	Err    error
}

// Dispatcher invokes the external tool for a task, bounded by the task's
// timeout. It owns no task or run state; it reports an Outcome and the
// control loop decides what that means for the task.
type Dispatcher struct {
	runID        string
	workDir      string
	resolver     tools.Resolver
	breakers     *CircuitBreakerRegistry
	pollInterval time.Duration
}

// NewDispatcher creates a dispatcher for one run. breakers may be nil to
// disable circuit breaking; workDir may be empty when the run has no
// workspace.
func NewDispatcher(runID, workDir string, resolver tools.Resolver, breakers *CircuitBreakerRegistry) *Dispatcher {
	return &Dispatcher{
		runID:        runID,
		workDir:      workDir,
		resolver:     resolver,
		breakers:     breakers,
		pollInterval: tools.DefaultPollInterval,
	}
}

// Dispatch invokes the tool bound to the task's agent/action with the task's
// input, waiting at most timeout (0 means no per-task bound). The invocation
// runs in its own goroutine; Dispatch returns as soon as the call finishes
// or the deadline passes, never blocking past it.
func (d *Dispatcher) Dispatch(ctx context.Context, task *scheduler.Task, timeout time.Duration) Outcome {
	inv, err := d.resolver.Resolve(task.Agent, task.Action)
	if err != nil {
		return Outcome{Kind: OutcomeFailure, Err: err}
	}

	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	req := tools.Request{
		RunID:   d.runID,
		TaskID:  task.ID,
		Agent:   task.Agent,
		Action:  task.Action,
		Input:   task.Input,
		WorkDir: d.workDir,
	}

	type callResult struct {
		resp tools.Response
		err  error
	}
	resultCh := make(chan callResult, 1)
	go func() {
		resp, err := d.invoke(callCtx, inv, req)
		resultCh <- callResult{resp, err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return d.classify(ctx, callCtx, res.err)
		}
		return Outcome{Kind: OutcomeSuccess, Output: res.resp.Output}
	case <-callCtx.Done():
		// The tool is expected to stop on cancellation, but the scheduler
		// does not wait for it to do so.
		return d.classify(ctx, callCtx, callCtx.Err())
	}
}

// classify turns a call error into an outcome: deadline from the per-task
// timeout is OutcomeTimeout, everything else is OutcomeFailure.
func (d *Dispatcher) classify(parent, callCtx context.Context, err error) Outcome {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
		return Outcome{Kind: OutcomeTimeout, Err: context.DeadlineExceeded}
	}
	return Outcome{Kind: OutcomeFailure, Err: err}
}

// invoke performs the actual tool call, through the agent's circuit breaker
// when breakers are enabled. Tools implementing AsyncInvoker are started and
// polled; plain Invokers are called directly.
func (d *Dispatcher) invoke(ctx context.Context, inv tools.Invoker, req tools.Request) (tools.Response, error) {
	call := func() (tools.Response, error) {
		if async, ok := inv.(tools.AsyncInvoker); ok {
			handle, err := async.Begin(ctx, req)
			if err != nil {
				return tools.Response{}, err
			}
			return tools.Await(ctx, handle, d.pollInterval)
		}
		return inv.Invoke(ctx, req)
	}

	if d.breakers == nil {
		return call()
	}

	cb := d.breakers.Get(req.Agent)
	result, err := cb.Execute(func() (interface{}, error) {
		return call()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return tools.Response{}, fmt.Errorf("agent %q unavailable: %w", req.Agent, err)
		}
		return tools.Response{}, err
	}
	return result.(tools.Response), nil
}
