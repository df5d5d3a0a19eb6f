package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/toposort"
)

// DAG tracks the tasks of one run and their execution state. All state
// transitions go through the Mark methods, which enforce the legal
// transition table and append to the transition log. The control loop is
// the only writer; the lock exists so status queries can read concurrently.
type DAG struct {
	mu          sync.RWMutex
	tasks       map[string]*Task    // All tasks indexed by ID
	order       []string            // Task IDs in plan order (the dispatch tie-break)
	dependents  map[string][]string // Maps taskID -> tasks that depend on it
	transitions []Transition
}

// NewDAG builds a DAG from a plan. Returns ErrDuplicateTaskID (as a
// *PlanError) if two tasks resolve to the same id.
func NewDAG(plan *Plan) (*DAG, error) {
	d := &DAG{
		tasks:      make(map[string]*Task, len(plan.Tasks)),
		order:      make([]string, 0, len(plan.Tasks)),
		dependents: make(map[string][]string),
	}

	for _, task := range plan.Tasks {
		if _, exists := d.tasks[task.ID]; exists {
			return nil, &PlanError{Kind: ErrDuplicateTaskID, TaskID: task.ID}
		}
		d.tasks[task.ID] = cloneTask(task)
		d.order = append(d.order, task.ID)

		for _, depID := range task.DependsOn {
			d.dependents[depID] = append(d.dependents[depID], task.ID)
		}
	}

	return d, nil
}

// Validate checks that every dependency exists and that the edges are
// acyclic. Returns the topologically sorted task IDs, or a *PlanError with
// kind ErrUnknownDependency or ErrCyclicDependency (the latter carrying the
// offending cycle).
func (d *DAG) Validate() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// First, verify all dependencies exist
	for _, taskID := range d.order {
		for _, depID := range d.tasks[taskID].DependsOn {
			if _, exists := d.tasks[depID]; !exists {
				return nil, &PlanError{
					Kind:   ErrUnknownDependency,
					TaskID: taskID,
					Detail: fmt.Sprintf("depends on non-existent task %q", depID),
				}
			}
		}
	}

	// Build edges for topological sort
	var edges []toposort.Edge
	for _, taskID := range d.order {
		task := d.tasks[taskID]
		if len(task.DependsOn) == 0 {
			// Task with no dependencies - add edge from nil to ensure it's included
			edges = append(edges, toposort.Edge{nil, taskID})
		} else {
			for _, depID := range task.DependsOn {
				// Edge (depID, taskID) means depID must come before taskID
				edges = append(edges, toposort.Edge{depID, taskID})
			}
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, &PlanError{Kind: ErrCyclicDependency, Cycle: d.findCycle()}
	}

	// Convert []interface{} to []string
	sortedIDs := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			sortedIDs = append(sortedIDs, id.(string))
		}
	}

	// Verify all tasks are in the sorted result (catches disconnected components)
	if len(sortedIDs) != len(d.tasks) {
		found := make(map[string]bool, len(sortedIDs))
		for _, id := range sortedIDs {
			found[id] = true
		}
		missing := []string{}
		for _, taskID := range d.order {
			if !found[taskID] {
				missing = append(missing, taskID)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return sortedIDs, nil
}

// findCycle walks depends_on edges depth-first and returns the first cycle
// found as a task id sequence with the entry node repeated at the end.
// Traversal order is deterministic: plan order for roots, declaration order
// for edges.
func (d *DAG) findCycle() []string {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(d.tasks))
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)

		for _, depID := range d.tasks[id].DependsOn {
			dep, exists := d.tasks[depID]
			if !exists {
				continue
			}
			switch color[depID] {
			case gray:
				// Found the cycle: slice the current path from depID onward
				for i, onPath := range path {
					if onPath == depID {
						cycle = append(append([]string(nil), path[i:]...), depID)
						return true
					}
				}
			case white:
				if visit(dep.ID) {
					return true
				}
			}
		}

		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range d.order {
		if color[id] == white && visit(id) {
			break
		}
	}
	return cycle
}

// Eligible returns the ready set: TaskPending tasks whose dependencies are
// all TaskSuccess, as clones, in plan order.
func (d *DAG) Eligible() []*Task {
	d.mu.RLock()
	defer d.mu.RUnlock()

	eligible := []*Task{}

	for _, taskID := range d.order {
		task := d.tasks[taskID]
		if task.Status != TaskPending {
			continue
		}

		allResolved := true
		for _, depID := range task.DependsOn {
			if dep, exists := d.tasks[depID]; !exists || dep.Status != TaskSuccess {
				allResolved = false
				break
			}
		}

		if allResolved {
			eligible = append(eligible, cloneTask(task))
		}
	}

	return eligible
}

// transition moves a task to a new status, enforcing the legality table and
// recording the change. Callers hold d.mu.
func (d *DAG) transition(task *Task, to TaskStatus, note string) error {
	from := task.Status
	if !canTransition(from, to) {
		return fmt.Errorf("task %q: invalid transition %s -> %s", task.ID, from, to)
	}

	task.Status = to
	now := time.Now()
	if to.Terminal() {
		task.FinishedAt = now
	}
	d.transitions = append(d.transitions, Transition{
		TaskID: task.ID,
		From:   from.String(),
		To:     to.String(),
		Note:   note,
		At:     now,
	})
	return nil
}

func (d *DAG) get(taskID string) (*Task, error) {
	task, exists := d.tasks[taskID]
	if !exists {
		return nil, fmt.Errorf("task %q not found", taskID)
	}
	return task, nil
}

// MarkRunning transitions a task to TaskRunning and returns the attempt
// number just started (1 for the first attempt).
func (d *DAG) MarkRunning(taskID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, err := d.get(taskID)
	if err != nil {
		return 0, err
	}
	if err := d.transition(task, TaskRunning, ""); err != nil {
		return 0, err
	}
	task.Attempts++
	if task.StartedAt.IsZero() {
		task.StartedAt = time.Now()
	}
	return task.Attempts, nil
}

// MarkSuccess transitions a task to TaskSuccess and stores its output.
func (d *DAG) MarkSuccess(taskID string, output map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, err := d.get(taskID)
	if err != nil {
		return err
	}
	if err := d.transition(task, TaskSuccess, ""); err != nil {
		return err
	}
	task.Output = cloneMap(output)
	return nil
}

// MarkFailed records a failed attempt. The task stays non-terminal until the
// retry decision lands in MarkRetryPending or MarkFailedFinal.
func (d *DAG) MarkFailed(taskID string, errMsg string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, err := d.get(taskID)
	if err != nil {
		return err
	}
	if err := d.transition(task, TaskFailed, errMsg); err != nil {
		return err
	}
	task.LastError = errMsg
	return nil
}

// MarkRetryPending transitions a failed task to TaskRetryPending.
func (d *DAG) MarkRetryPending(taskID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, err := d.get(taskID)
	if err != nil {
		return err
	}
	return d.transition(task, TaskRetryPending, "")
}

// MarkRequeued returns a retry-pending task to TaskPending so it re-enters
// the ready set.
func (d *DAG) MarkRequeued(taskID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, err := d.get(taskID)
	if err != nil {
		return err
	}
	return d.transition(task, TaskPending, "")
}

// MarkFailedFinal transitions a failed task to TaskFailedFinal.
func (d *DAG) MarkFailedFinal(taskID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	task, err := d.get(taskID)
	if err != nil {
		return err
	}
	return d.transition(task, TaskFailedFinal, task.LastError)
}

// CascadeSkip marks every task downstream of failedID as TaskSkipped,
// transitively, and returns the skipped ids in the order they were marked.
// Only TaskPending tasks can be skipped; anything already running had all
// its dependencies succeed and is unaffected.
func (d *DAG) CascadeSkip(failedID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	skipped := []string{}
	queue := append([]string(nil), d.dependents[failedID]...)
	cause := map[string]string{}
	for _, id := range queue {
		cause[id] = failedID
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		task, exists := d.tasks[id]
		if !exists || task.Status != TaskPending {
			continue
		}
		if err := d.transition(task, TaskSkipped, fmt.Sprintf("upstream task %q failed", cause[id])); err != nil {
			continue
		}
		task.LastError = fmt.Sprintf("skipped: upstream task %q failed", cause[id])
		skipped = append(skipped, id)

		for _, depID := range d.dependents[id] {
			if _, seen := cause[depID]; !seen {
				cause[depID] = cause[id]
				queue = append(queue, depID)
			}
		}
	}

	return skipped
}

// CancelRemaining marks every non-terminal task as TaskCancelled and returns
// the affected ids in plan order. Used on explicit cancel and on total
// timeout; in-flight tool calls are cancelled cooperatively via context.
func (d *DAG) CancelRemaining(note string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	cancelled := []string{}
	for _, taskID := range d.order {
		task := d.tasks[taskID]
		if task.Status.Terminal() {
			continue
		}
		if err := d.transition(task, TaskCancelled, note); err != nil {
			continue
		}
		cancelled = append(cancelled, taskID)
	}
	return cancelled
}

// Get returns a clone of the task with the given id.
func (d *DAG) Get(taskID string) (*Task, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	task, exists := d.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Status returns the current status of the task with the given id.
func (d *DAG) Status(taskID string) (TaskStatus, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	task, exists := d.tasks[taskID]
	if !exists {
		return 0, false
	}
	return task.Status, true
}

// Tasks returns clones of all tasks in plan order.
func (d *DAG) Tasks() []*Task {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tasks := make([]*Task, 0, len(d.order))
	for _, taskID := range d.order {
		tasks = append(tasks, cloneTask(d.tasks[taskID]))
	}
	return tasks
}

// Snapshots returns the externally visible task states in plan order.
func (d *DAG) Snapshots() []Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(d.order))
	for _, taskID := range d.order {
		snaps = append(snaps, d.tasks[taskID].snapshot())
	}
	return snaps
}

// Transitions returns a copy of the transition log.
func (d *DAG) Transitions() []Transition {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return append([]Transition(nil), d.transitions...)
}

// Dependents returns the ids of tasks that list taskID as a dependency,
// sorted for deterministic output.
func (d *DAG) Dependents(taskID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	deps := append([]string(nil), d.dependents[taskID]...)
	sort.Strings(deps)
	return deps
}

// Counts tallies task states.
func (d *DAG) Counts() Counts {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c := Counts{Total: len(d.tasks)}
	for _, task := range d.tasks {
		switch task.Status {
		case TaskPending, TaskFailed, TaskRetryPending:
			c.Pending++
		case TaskRunning:
			c.Running++
		case TaskSuccess:
			c.Succeeded++
		case TaskFailedFinal:
			c.Failed++
		case TaskSkipped:
			c.Skipped++
		case TaskCancelled:
			c.Cancelled++
		}
	}
	return c
}

// RunningCount returns the number of tasks currently TaskRunning.
func (d *DAG) RunningCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	count := 0
	for _, task := range d.tasks {
		if task.Status == TaskRunning {
			count++
		}
	}
	return count
}

// AllTerminal reports whether every task has reached a terminal state.
func (d *DAG) AllTerminal() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, task := range d.tasks {
		if !task.Status.Terminal() {
			return false
		}
	}
	return true
}

// FinalStatus derives the run-level outcome from terminal task states:
// success iff everything succeeded, partial failure iff anything succeeded,
// failed otherwise.
func (d *DAG) FinalStatus() RunStatus {
	c := d.Counts()
	switch {
	case c.Succeeded == c.Total:
		return RunSuccess
	case c.Succeeded > 0:
		return RunPartialFailure
	default:
		return RunFailed
	}
}
