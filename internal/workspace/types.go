package workspace

import "time"

// Info describes one run workspace on disk.
type Info struct {
	RunID    string    // Run the workspace belongs to
	Path     string    // Absolute path to the workspace directory
	Modified time.Time // Last modification of the directory entry
}

// ManagerConfig configures the workspace manager.
type ManagerConfig struct {
	Root string // Directory holding per-run workspaces (default ".appforge/workspaces")
}
