package scheduler

import (
	"encoding/json"
	"fmt"
	"time"
)

// Settings are the per-run execution knobs. They are fixed once the run
// starts; the scheduler never re-reads external configuration mid-run.
type Settings struct {
	MaxParallel  int           // Maximum tasks running at once (>= 1)
	RetryFailed  bool          // Whether failed tasks are retried
	MaxRetries   int           // Retries per task after the first attempt (>= 0)
	TotalTimeout time.Duration // Whole-run watchdog; 0 disables it
}

// Normalize clamps settings into their valid ranges. MaxParallel below 1
// becomes 1, which is the sequential fallback mode.
func (s *Settings) Normalize() {
	if s.MaxParallel < 1 {
		s.MaxParallel = 1
	}
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	}
	if s.TotalTimeout < 0 {
		s.TotalTimeout = 0
	}
}

// Plan is the declarative description of one run: the agents involved, the
// tasks with their dependency edges in author order, and the run settings.
// A Plan is immutable once validated.
type Plan struct {
	Agents   []string
	Tasks    []*Task // In plan order; order is the dispatch tie-break
	Settings Settings
}

// Wire format for plan files. Timeouts are integer seconds on the wire.
type planFile struct {
	Agents   []string       `json:"agents"`
	Workflow []workflowStep `json:"workflow"`
	Settings *settingsFile  `json:"settings"`
}

type workflowStep struct {
	ID          string         `json:"id,omitempty"`
	Agent       string         `json:"agent"`
	Action      string         `json:"action"`
	DependsOn   []string       `json:"depends_on,omitempty"`
	Description string         `json:"description,omitempty"`
	Timeout     int            `json:"timeout,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
}

type settingsFile struct {
	MaxParallelAgents int  `json:"max_parallel_agents"`
	RetryFailedTasks  bool `json:"retry_failed_tasks"`
	MaxRetries        int  `json:"max_retries"`
	TotalTimeout      int  `json:"total_timeout"`
}

// ParsePlan decodes a plan document. A step without an explicit id gets the
// agent name as its id; two steps resolving to the same id are rejected at
// DAG construction, never silently merged. When the document has no settings
// block, defaults is used instead.
func ParsePlan(data []byte, defaults Settings) (*Plan, error) {
	var pf planFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}

	plan := &Plan{
		Agents: append([]string(nil), pf.Agents...),
		Tasks:  make([]*Task, 0, len(pf.Workflow)),
	}

	for i, step := range pf.Workflow {
		if step.Agent == "" {
			return nil, fmt.Errorf("parsing plan: workflow step %d has no agent", i)
		}
		id := step.ID
		if id == "" {
			id = step.Agent
		}
		plan.Tasks = append(plan.Tasks, &Task{
			ID:          id,
			Agent:       step.Agent,
			Action:      step.Action,
			Description: step.Description,
			DependsOn:   append([]string(nil), step.DependsOn...),
			Input:       step.Input,
			Timeout:     time.Duration(step.Timeout) * time.Second,
			Status:      TaskPending,
		})
	}

	if pf.Settings != nil {
		plan.Settings = Settings{
			MaxParallel:  pf.Settings.MaxParallelAgents,
			RetryFailed:  pf.Settings.RetryFailedTasks,
			MaxRetries:   pf.Settings.MaxRetries,
			TotalTimeout: time.Duration(pf.Settings.TotalTimeout) * time.Second,
		}
	} else {
		plan.Settings = defaults
	}
	plan.Settings.Normalize()

	return plan, nil
}
