package config

// DefaultConfig returns the built-in configuration: local paths under
// .appforge and the bundled tools registered under their own names.
func DefaultConfig() *Config {
	return &Config{
		DatabasePath: ".appforge/appforge.db",
		WorkspaceDir: ".appforge/workspaces",
		Defaults: RunDefaults{
			MaxParallelAgents: 2,
			RetryFailedTasks:  true,
			MaxRetries:        2,
			TotalTimeoutSecs:  3600,
		},
		Tools: map[string]ToolConfig{
			"echo":      {Type: "echo"},
			"generator": {Type: "generator"},
			"archive":   {Type: "archive"},
		},
	}
}
