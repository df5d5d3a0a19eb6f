package orchestrator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/aristath/appforge/internal/events"
	"github.com/aristath/appforge/internal/persistence"
	"github.com/aristath/appforge/internal/scheduler"
)

// Cancellation causes, attached to the run context so the loop can tell a
// watchdog expiry from an explicit cancel.
var (
	ErrRunTimeout   = errors.New("run total timeout exceeded")
	ErrRunCancelled = errors.New("run cancelled")
)

// completion is one dispatch result arriving at the control loop.
type completion struct {
	taskID  string
	attempt int
	outcome Outcome
	started time.Time
}

// RunnerConfig configures the runner for one run.
type RunnerConfig struct {
	RunID      string
	Settings   scheduler.Settings
	Dispatcher *Dispatcher
	Policy     Policy
	Bus        *events.EventBus  // Optional; nil disables events
	Store      persistence.Store // Optional; nil disables recording
}

// Runner drives one run's DAG to completion. It is the single owner of all
// task state transitions: dispatch outcomes and retry requeues arrive as
// messages on channels, and only the Run loop goroutine applies them. Task
// tool calls run in their own goroutines, so the loop keeps dispatching
// while any number of tasks are in flight.
type Runner struct {
	cfg      RunnerConfig
	dag      *scheduler.DAG
	done     chan completion
	requeue  chan string
	inflight int
}

// NewRunner creates a runner over a validated DAG.
func NewRunner(cfg RunnerConfig, dag *scheduler.DAG) *Runner {
	cfg.Settings.Normalize()
	taskCount := len(dag.Tasks())
	return &Runner{
		cfg:     cfg,
		dag:     dag,
		done:    make(chan completion, cfg.Settings.MaxParallel),
		requeue: make(chan string, taskCount+1),
	}
}

// Run executes the DAG until every task is terminal or ctx is cancelled,
// and returns the run-level status. With MaxParallel 1 this same loop is
// the sequential fallback mode.
func (r *Runner) Run(ctx context.Context) scheduler.RunStatus {
	for {
		if ctx.Err() != nil {
			return r.abort(ctx)
		}

		r.fill(ctx)

		if r.inflight == 0 && r.dag.AllTerminal() {
			break
		}

		select {
		case c := <-r.done:
			r.handleCompletion(ctx, c)
		case taskID := <-r.requeue:
			r.handleRequeue(taskID)
		case <-ctx.Done():
			return r.abort(ctx)
		}
	}

	return r.dag.FinalStatus()
}

// fill dispatches ready tasks up to the available capacity, in plan order.
func (r *Runner) fill(ctx context.Context) {
	capacity := r.cfg.Settings.MaxParallel - r.inflight
	if capacity <= 0 {
		return
	}

	for _, task := range r.dag.Eligible() {
		if capacity == 0 {
			break
		}
		if err := r.start(ctx, task); err != nil {
			log.Printf("ERROR: failed to start task %q: %v", task.ID, err)
			continue
		}
		capacity--
	}
}

// start transitions a task to running and launches its dispatch goroutine.
func (r *Runner) start(ctx context.Context, task *scheduler.Task) error {
	attempt, err := r.dag.MarkRunning(task.ID)
	if err != nil {
		return err
	}

	started := time.Now()
	r.publish(events.TopicTask, events.TaskStartedEvent{
		Run:       r.cfg.RunID,
		ID:        task.ID,
		Agent:     task.Agent,
		Action:    task.Action,
		Attempt:   attempt,
		Timestamp: started,
	})
	r.persistTask(task.ID)

	r.inflight++
	go func() {
		outcome := r.cfg.Dispatcher.Dispatch(ctx, task, task.Timeout)
		select {
		case r.done <- completion{taskID: task.ID, attempt: attempt, outcome: outcome, started: started}:
		case <-ctx.Done():
		}
	}()
	return nil
}

// handleCompletion applies one dispatch outcome: success unlocks dependents,
// failure consults the retry policy and on exhaustion cascades skips.
func (r *Runner) handleCompletion(ctx context.Context, c completion) {
	r.inflight--

	status, ok := r.dag.Status(c.taskID)
	if !ok || status != scheduler.TaskRunning {
		// Task reached a terminal state while the dispatch was in flight
		// (run cancelled); terminal states are never touched again.
		return
	}

	switch c.outcome.Kind {
	case OutcomeSuccess:
		if err := r.dag.MarkSuccess(c.taskID, c.outcome.Output); err != nil {
			log.Printf("ERROR: failed to mark task %q success: %v", c.taskID, err)
			return
		}
		r.publish(events.TopicTask, events.TaskSucceededEvent{
			Run:       r.cfg.RunID,
			ID:        c.taskID,
			Attempt:   c.attempt,
			Duration:  time.Since(c.started),
			Timestamp: time.Now(),
		})
		r.persistTask(c.taskID)

	default:
		r.handleFailure(ctx, c)
	}

	r.publishProgress()
}

// handleFailure records a failed attempt and either schedules a retry or
// finalizes the failure and skips everything downstream.
func (r *Runner) handleFailure(ctx context.Context, c completion) {
	errMsg := c.outcome.Kind.String()
	if c.outcome.Err != nil {
		errMsg = c.outcome.Err.Error()
	}

	if err := r.dag.MarkFailed(c.taskID, errMsg); err != nil {
		log.Printf("ERROR: failed to mark task %q failed: %v", c.taskID, err)
		return
	}

	if r.cfg.Policy.ShouldRetry(c.attempt, c.outcome.Kind) {
		if err := r.dag.MarkRetryPending(c.taskID); err != nil {
			log.Printf("ERROR: failed to mark task %q retry pending: %v", c.taskID, err)
			return
		}
		delay := r.cfg.Policy.NextDelay(c.attempt)
		r.publish(events.TopicTask, events.TaskFailedEvent{
			Run:       r.cfg.RunID,
			ID:        c.taskID,
			Attempt:   c.attempt,
			Err:       errMsg,
			Final:     false,
			Timestamp: time.Now(),
		})
		r.publish(events.TopicTask, events.TaskRetryingEvent{
			Run:       r.cfg.RunID,
			ID:        c.taskID,
			Attempt:   c.attempt,
			Delay:     delay,
			Timestamp: time.Now(),
		})
		r.persistTask(c.taskID)

		if delay <= 0 {
			if err := r.dag.MarkRequeued(c.taskID); err != nil {
				log.Printf("ERROR: failed to requeue task %q: %v", c.taskID, err)
			}
			return
		}
		taskID := c.taskID
		time.AfterFunc(delay, func() {
			select {
			case r.requeue <- taskID:
			case <-ctx.Done():
			}
		})
		return
	}

	if err := r.dag.MarkFailedFinal(c.taskID); err != nil {
		log.Printf("ERROR: failed to finalize task %q: %v", c.taskID, err)
		return
	}
	r.publish(events.TopicTask, events.TaskFailedEvent{
		Run:       r.cfg.RunID,
		ID:        c.taskID,
		Attempt:   c.attempt,
		Err:       errMsg,
		Final:     true,
		Timestamp: time.Now(),
	})
	r.persistTask(c.taskID)

	for _, skippedID := range r.dag.CascadeSkip(c.taskID) {
		r.publish(events.TopicTask, events.TaskSkippedEvent{
			Run:       r.cfg.RunID,
			ID:        skippedID,
			Cause:     c.taskID,
			Timestamp: time.Now(),
		})
		r.persistTask(skippedID)
	}
}

// handleRequeue returns a retry-pending task to the ready set once its
// retry delay has elapsed.
func (r *Runner) handleRequeue(taskID string) {
	status, ok := r.dag.Status(taskID)
	if !ok || status != scheduler.TaskRetryPending {
		return
	}
	if err := r.dag.MarkRequeued(taskID); err != nil {
		log.Printf("ERROR: failed to requeue task %q: %v", taskID, err)
	}
}

// abort cancels every non-terminal task and maps the context cause to the
// run status: watchdog expiry becomes TimedOut, everything else Cancelled.
func (r *Runner) abort(ctx context.Context) scheduler.RunStatus {
	cause := context.Cause(ctx)
	status := scheduler.RunCancelled
	note := ErrRunCancelled.Error()
	if errors.Is(cause, ErrRunTimeout) {
		status = scheduler.RunTimedOut
		note = ErrRunTimeout.Error()
	}

	for _, taskID := range r.dag.CancelRemaining(note) {
		r.publish(events.TopicTask, events.TaskCancelledEvent{
			Run:       r.cfg.RunID,
			ID:        taskID,
			Timestamp: time.Now(),
		})
		r.persistTask(taskID)
	}
	r.publishProgress()
	return status
}

func (r *Runner) publish(topic string, event events.Event) {
	if r.cfg.Bus != nil {
		r.cfg.Bus.Publish(topic, event)
	}
}

func (r *Runner) publishProgress() {
	if r.cfg.Bus == nil {
		return
	}
	c := r.dag.Counts()
	r.cfg.Bus.Publish(events.TopicRun, events.RunProgressEvent{
		Run:       r.cfg.RunID,
		Total:     c.Total,
		Pending:   c.Pending,
		Running:   c.Running,
		Succeeded: c.Succeeded,
		Failed:    c.Failed,
		Skipped:   c.Skipped,
		Cancelled: c.Cancelled,
		Timestamp: time.Now(),
	})
}

// persistTask records the task's current state. Recording failures are
// logged, never allowed to affect the run.
func (r *Runner) persistTask(taskID string) {
	if r.cfg.Store == nil {
		return
	}
	task, ok := r.dag.Get(taskID)
	if !ok {
		return
	}
	if err := r.cfg.Store.SaveTask(context.Background(), r.cfg.RunID, task); err != nil {
		log.Printf("WARNING: failed to persist task %q: %v", taskID, err)
	}
}
