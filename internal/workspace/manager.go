// Package workspace manages the per-run working directories that tools write
// generated files into. Each run gets an isolated directory under a common
// root, named by its run id.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultRoot is used when the configuration does not name a workspace root.
const DefaultRoot = ".appforge/workspaces"

// Manager creates and removes run workspaces.
type Manager struct {
	root string
}

// NewManager creates a workspace manager rooted at cfg.Root.
func NewManager(cfg ManagerConfig) *Manager {
	root := cfg.Root
	if root == "" {
		root = DefaultRoot
	}
	return &Manager{root: root}
}

// Root returns the directory holding all run workspaces.
func (m *Manager) Root() string { return m.root }

// Create makes the workspace directory for a run and returns its path.
// Creating the same run's workspace twice is a no-op returning the same path.
func (m *Manager) Create(runID string) (string, error) {
	path, err := m.Path(runID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", fmt.Errorf("creating workspace for run %s: %w", runID, err)
	}
	return path, nil
}

// Path returns the workspace directory for a run without creating it. Run ids
// that would resolve outside the root are rejected.
func (m *Manager) Path(runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("empty run id")
	}
	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	return filepath.Join(m.root, runID), nil
}

// Remove deletes a run's workspace and everything in it. Removing a
// workspace that does not exist is a no-op.
func (m *Manager) Remove(runID string) error {
	path, err := m.Path(runID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("removing workspace for run %s: %w", runID, err)
	}
	return nil
}

// List returns the workspaces currently on disk, one per run directory under
// the root. A missing root means no workspaces yet.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing workspaces: %w", err)
	}

	var infos []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info := Info{
			RunID: entry.Name(),
			Path:  filepath.Join(m.root, entry.Name()),
		}
		if fi, err := entry.Info(); err == nil {
			info.Modified = fi.ModTime()
		}
		infos = append(infos, info)
	}
	return infos, nil
}
