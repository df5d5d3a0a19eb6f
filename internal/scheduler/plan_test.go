package scheduler

import (
	"strings"
	"testing"
	"time"
)

func TestParsePlan(t *testing.T) {
	doc := []byte(`{
		"agents": ["architect", "backend", "frontend"],
		"workflow": [
			{"agent": "architect", "action": "design", "description": "sketch the system"},
			{"id": "api", "agent": "backend", "action": "generate", "depends_on": ["architect"], "timeout": 300, "input": {"lang": "go"}},
			{"agent": "frontend", "action": "generate", "depends_on": ["architect"]}
		],
		"settings": {
			"max_parallel_agents": 3,
			"retry_failed_tasks": true,
			"max_retries": 2,
			"total_timeout": 3600
		}
	}`)

	plan, err := ParsePlan(doc, Settings{})
	if err != nil {
		t.Fatalf("ParsePlan() error = %v", err)
	}

	if len(plan.Agents) != 3 {
		t.Errorf("agents = %v, want 3 entries", plan.Agents)
	}
	if len(plan.Tasks) != 3 {
		t.Fatalf("tasks = %d, want 3", len(plan.Tasks))
	}

	first := plan.Tasks[0]
	if first.ID != "architect" {
		t.Errorf("task without explicit id got %q, want the agent name", first.ID)
	}
	if first.Status != TaskPending {
		t.Errorf("parsed task status = %v, want TaskPending", first.Status)
	}

	api := plan.Tasks[1]
	if api.ID != "api" || api.Agent != "backend" {
		t.Errorf("explicit id task = %q/%q, want api/backend", api.ID, api.Agent)
	}
	if api.Timeout != 300*time.Second {
		t.Errorf("timeout = %v, want 300s", api.Timeout)
	}
	if len(api.DependsOn) != 1 || api.DependsOn[0] != "architect" {
		t.Errorf("depends_on = %v, want [architect]", api.DependsOn)
	}
	if api.Input["lang"] != "go" {
		t.Errorf("input = %v, want lang=go", api.Input)
	}

	want := Settings{MaxParallel: 3, RetryFailed: true, MaxRetries: 2, TotalTimeout: time.Hour}
	if plan.Settings != want {
		t.Errorf("settings = %+v, want %+v", plan.Settings, want)
	}
}

func TestParsePlanDefaults(t *testing.T) {
	doc := []byte(`{"workflow": [{"agent": "solo", "action": "run"}]}`)
	defaults := Settings{MaxParallel: 2, RetryFailed: true, MaxRetries: 1}

	plan, err := ParsePlan(doc, defaults)
	if err != nil {
		t.Fatalf("ParsePlan() error = %v", err)
	}
	if plan.Settings != defaults {
		t.Errorf("settings = %+v, want the provided defaults %+v", plan.Settings, defaults)
	}
	if plan.Tasks[0].Timeout != 0 {
		t.Errorf("timeout = %v, want 0 when the step has none", plan.Tasks[0].Timeout)
	}
}

func TestParsePlanErrors(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		errContains string
	}{
		{
			name:        "invalid json",
			doc:         `{"workflow": [`,
			errContains: "parsing plan",
		},
		{
			name:        "step without agent",
			doc:         `{"workflow": [{"action": "run"}]}`,
			errContains: "has no agent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan([]byte(tt.doc), Settings{})
			if err == nil {
				t.Fatal("ParsePlan() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

func TestParsePlanDuplicateIDSurfacesAtDAGBuild(t *testing.T) {
	doc := []byte(`{"workflow": [
		{"agent": "coder", "action": "one"},
		{"agent": "coder", "action": "two"}
	]}`)

	plan, err := ParsePlan(doc, Settings{})
	if err != nil {
		t.Fatalf("ParsePlan() error = %v, duplicates are a DAG concern", err)
	}
	if _, err := NewDAG(plan); err == nil {
		t.Error("NewDAG() error = nil, want duplicate id rejection")
	}
}

func TestSettingsNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Settings
		want Settings
	}{
		{
			name: "zero parallelism becomes sequential",
			in:   Settings{MaxParallel: 0},
			want: Settings{MaxParallel: 1},
		},
		{
			name: "negative values clamped",
			in:   Settings{MaxParallel: -3, MaxRetries: -1, TotalTimeout: -time.Second},
			want: Settings{MaxParallel: 1},
		},
		{
			name: "valid settings untouched",
			in:   Settings{MaxParallel: 4, RetryFailed: true, MaxRetries: 2, TotalTimeout: time.Minute},
			want: Settings{MaxParallel: 4, RetryFailed: true, MaxRetries: 2, TotalTimeout: time.Minute},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			got.Normalize()
			if got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
