package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/appforge/internal/events"
	"github.com/aristath/appforge/internal/persistence"
	"github.com/aristath/appforge/internal/scheduler"
	"github.com/aristath/appforge/internal/tools"
)

// DefaultPollInterval is how often WaitForCompletion re-checks run status.
const DefaultPollInterval = 250 * time.Millisecond

// WorkspaceProvider creates the working directory for a run. Tools receive
// the directory through the dispatch request.
type WorkspaceProvider interface {
	Create(runID string) (string, error)
}

// ControllerConfig wires the controller's collaborators. Resolver is
// required; everything else may be nil to disable the concern.
type ControllerConfig struct {
	Resolver   tools.Resolver
	Bus        *events.EventBus
	Store      persistence.Store
	Breakers   *CircuitBreakerRegistry
	Workspaces WorkspaceProvider
	Delay      DelayFunc // Retry delay curve; nil means zero delay
}

// managedRun is one run owned by the controller: the record, its DAG, and
// the handle for cancelling the control loop.
type managedRun struct {
	mu     sync.RWMutex
	run    *scheduler.Run
	dag    *scheduler.DAG // nil when the plan was rejected
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Controller owns run lifecycles: it validates plans, starts the scheduler,
// enforces the total-timeout watchdog, and answers status and cancellation
// requests. Task-level state belongs to the runner; the controller only
// transitions run-level state.
type Controller struct {
	cfg  ControllerConfig
	mu   sync.RWMutex
	runs map[string]*managedRun
}

// NewController creates a controller.
func NewController(cfg ControllerConfig) *Controller {
	return &Controller{
		cfg:  cfg,
		runs: make(map[string]*managedRun),
	}
}

// Start validates the plan and begins executing it. The returned run id is
// valid even when the plan is rejected: a malformed plan creates the run
// already terminal with the validation error recorded, so callers can always
// query what happened, and the error is also returned synchronously.
func (c *Controller) Start(ctx context.Context, plan *scheduler.Plan) (string, error) {
	runID := uuid.NewString()
	plan.Settings.Normalize()

	run := &scheduler.Run{
		ID:        runID,
		Plan:      plan,
		Status:    scheduler.RunInProgress,
		CreatedAt: time.Now(),
	}

	dag, err := scheduler.NewDAG(plan)
	if err == nil {
		_, err = dag.Validate()
	}
	if err != nil {
		run.Status = scheduler.RunFailed
		run.Error = err.Error()
		run.FinishedAt = run.CreatedAt

		mr := &managedRun{run: run, done: make(chan struct{})}
		close(mr.done)
		c.register(runID, mr)
		c.persistRun(run)
		log.Printf("run %s rejected: %v", runID, err)
		return runID, err
	}

	workDir := ""
	if c.cfg.Workspaces != nil {
		workDir, err = c.cfg.Workspaces.Create(runID)
		if err != nil {
			return "", fmt.Errorf("creating workspace for run %s: %w", runID, err)
		}
	}

	run.StartedAt = time.Now()

	// The run outlives the Start call; its lifetime is bounded by the
	// watchdog and explicit cancellation, not by the caller's context.
	runCtx, cancel := context.WithCancelCause(context.Background())

	mr := &managedRun{
		run:    run,
		dag:    dag,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.register(runID, mr)
	c.persistRun(run)
	c.persistTasks(runID, dag)

	dispatcher := NewDispatcher(runID, workDir, c.cfg.Resolver, c.cfg.Breakers)
	runner := NewRunner(RunnerConfig{
		RunID:      runID,
		Settings:   plan.Settings,
		Dispatcher: dispatcher,
		Policy:     PolicyFromSettings(plan.Settings, c.cfg.Delay),
		Bus:        c.cfg.Bus,
		Store:      c.cfg.Store,
	}, dag)

	var watchdog *time.Timer
	if plan.Settings.TotalTimeout > 0 {
		watchdog = time.AfterFunc(plan.Settings.TotalTimeout, func() {
			log.Printf("run %s exceeded total timeout %v", runID, plan.Settings.TotalTimeout)
			cancel(ErrRunTimeout)
		})
	}

	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(events.TopicRun, events.RunStartedEvent{
			Run:         runID,
			TaskCount:   len(plan.Tasks),
			MaxParallel: plan.Settings.MaxParallel,
			Timestamp:   run.StartedAt,
		})
	}
	log.Printf("run %s started: %d tasks, max parallel %d", runID, len(plan.Tasks), plan.Settings.MaxParallel)

	go func() {
		defer close(mr.done)

		status := runner.Run(runCtx)
		if watchdog != nil {
			watchdog.Stop()
		}
		cancel(nil)

		mr.mu.Lock()
		mr.run.Status = status
		mr.run.FinishedAt = time.Now()
		duration := mr.run.FinishedAt.Sub(mr.run.StartedAt)
		mr.mu.Unlock()

		c.persistRun(mr.run)
		c.persistTransitions(runID, dag)

		if c.cfg.Bus != nil {
			c.cfg.Bus.Publish(events.TopicRun, events.RunCompletedEvent{
				Run:       runID,
				Status:    status.String(),
				Duration:  duration,
				Timestamp: time.Now(),
			})
		}
		log.Printf("run %s finished: %s in %v", runID, status, duration.Round(time.Millisecond))
	}()

	return runID, nil
}

// Status returns the run's current externally visible state.
func (c *Controller) Status(runID string) (scheduler.RunSnapshot, error) {
	mr, err := c.lookup(runID)
	if err != nil {
		return scheduler.RunSnapshot{}, err
	}

	mr.mu.RLock()
	snap := scheduler.RunSnapshot{
		ID:         mr.run.ID,
		Status:     mr.run.Status,
		Error:      mr.run.Error,
		CreatedAt:  mr.run.CreatedAt,
		StartedAt:  mr.run.StartedAt,
		FinishedAt: mr.run.FinishedAt,
	}
	mr.mu.RUnlock()

	if mr.dag != nil {
		snap.Tasks = mr.dag.Snapshots()
		snap.Transitions = mr.dag.Transitions()
	}
	return snap, nil
}

// Cancel requests cooperative cancellation of a run. Running tasks receive
// context cancellation; pending tasks are marked cancelled by the runner's
// abort path. Cancelling an already-terminal run is a no-op.
func (c *Controller) Cancel(runID string) error {
	mr, err := c.lookup(runID)
	if err != nil {
		return err
	}
	if mr.cancel != nil {
		mr.cancel(ErrRunCancelled)
	}
	return nil
}

// WaitForCompletion polls the run until it reaches a terminal state or ctx
// expires, returning the final snapshot. poll <= 0 uses DefaultPollInterval.
func (c *Controller) WaitForCompletion(ctx context.Context, runID string, poll time.Duration) (scheduler.RunSnapshot, error) {
	mr, err := c.lookup(runID)
	if err != nil {
		return scheduler.RunSnapshot{}, err
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		snap, err := c.Status(runID)
		if err != nil {
			return scheduler.RunSnapshot{}, err
		}
		if snap.Status.Terminal() {
			return snap, nil
		}

		select {
		case <-mr.done:
			// Final status lands before done closes; re-read it.
		case <-ticker.C:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

func (c *Controller) register(runID string, mr *managedRun) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs[runID] = mr
}

func (c *Controller) lookup(runID string) (*managedRun, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	mr, ok := c.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %q not found", runID)
	}
	return mr, nil
}

func (c *Controller) persistRun(run *scheduler.Run) {
	if c.cfg.Store == nil {
		return
	}
	if err := c.cfg.Store.SaveRun(context.Background(), run); err != nil {
		log.Printf("WARNING: failed to persist run %s: %v", run.ID, err)
	}
}

func (c *Controller) persistTasks(runID string, dag *scheduler.DAG) {
	if c.cfg.Store == nil {
		return
	}
	for _, task := range dag.Tasks() {
		if err := c.cfg.Store.SaveTask(context.Background(), runID, task); err != nil {
			log.Printf("WARNING: failed to persist task %q: %v", task.ID, err)
		}
	}
}

func (c *Controller) persistTransitions(runID string, dag *scheduler.DAG) {
	if c.cfg.Store == nil {
		return
	}
	if err := c.cfg.Store.SaveTransitions(context.Background(), runID, dag.Transitions()); err != nil {
		log.Printf("WARNING: failed to persist transitions for run %s: %v", runID, err)
	}
}
