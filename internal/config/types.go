package config

import (
	"time"

	"github.com/aristath/appforge/internal/scheduler"
)

// ToolConfig defines one tool binding: the capability name it is registered
// under maps to a tool type and, for external commands, the executable.
type ToolConfig struct {
	Type    string   `json:"type"`              // "echo", "command", "generator", or "archive"
	Command string   `json:"command,omitempty"` // For "command": executable to run
	Args    []string `json:"args,omitempty"`    // For "command": fixed arguments
}

// RunDefaults are the execution settings applied to plans that carry no
// settings block of their own. Timeouts are integer seconds, matching the
// plan wire format.
type RunDefaults struct {
	MaxParallelAgents int  `json:"max_parallel_agents"`
	RetryFailedTasks  bool `json:"retry_failed_tasks"`
	MaxRetries        int  `json:"max_retries"`
	TotalTimeoutSecs  int  `json:"total_timeout"`
}

// Settings converts the defaults into scheduler settings.
func (d RunDefaults) Settings() scheduler.Settings {
	s := scheduler.Settings{
		MaxParallel:  d.MaxParallelAgents,
		RetryFailed:  d.RetryFailedTasks,
		MaxRetries:   d.MaxRetries,
		TotalTimeout: time.Duration(d.TotalTimeoutSecs) * time.Second,
	}
	s.Normalize()
	return s
}

// Config is the top-level configuration.
type Config struct {
	DatabasePath string                `json:"database_path"` // SQLite file for run history
	WorkspaceDir string                `json:"workspace_dir"` // Root for per-run workspaces
	Defaults     RunDefaults           `json:"defaults"`
	Tools        map[string]ToolConfig `json:"tools"`
}
