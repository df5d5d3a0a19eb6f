package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestManagerDefaultRoot(t *testing.T) {
	m := NewManager(ManagerConfig{})
	if m.Root() != DefaultRoot {
		t.Errorf("Root() = %q, want %q", m.Root(), DefaultRoot)
	}
}

func TestCreateAndRemove(t *testing.T) {
	root := t.TempDir()
	m := NewManager(ManagerConfig{Root: root})

	path, err := m.Create("run-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if path != filepath.Join(root, "run-1") {
		t.Errorf("Create() = %q, want it under the root", path)
	}
	if fi, err := os.Stat(path); err != nil || !fi.IsDir() {
		t.Fatalf("workspace directory missing: %v", err)
	}

	// Idempotent
	again, err := m.Create("run-1")
	if err != nil {
		t.Fatalf("second Create() error = %v", err)
	}
	if again != path {
		t.Errorf("second Create() = %q, want %q", again, path)
	}

	if err := os.WriteFile(filepath.Join(path, "main.go"), []byte("package main"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove("run-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after Remove: %v", err)
	}

	// Removing again is a no-op
	if err := m.Remove("run-1"); err != nil {
		t.Errorf("Remove() of a missing workspace = %v, want nil", err)
	}
}

func TestPathRejectsEscapingRunIDs(t *testing.T) {
	m := NewManager(ManagerConfig{Root: t.TempDir()})

	for _, runID := range []string{"", "..", ".", "a/b", `a\b`, "../escape"} {
		if _, err := m.Path(runID); err == nil {
			t.Errorf("Path(%q) error = nil, want rejection", runID)
		}
	}
}

func TestList(t *testing.T) {
	root := t.TempDir()
	m := NewManager(ManagerConfig{Root: root})

	infos, err := m.List()
	if err != nil {
		t.Fatalf("List() on empty root error = %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("List() = %v, want empty", infos)
	}

	for _, runID := range []string{"run-a", "run-b"} {
		if _, err := m.Create(runID); err != nil {
			t.Fatal(err)
		}
	}
	// Stray files under the root are not workspaces
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	infos, err = m.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(infos))
	}
	seen := map[string]bool{}
	for _, info := range infos {
		seen[info.RunID] = true
		if info.Path != filepath.Join(root, info.RunID) {
			t.Errorf("info path = %q, want it under the root", info.Path)
		}
	}
	if !seen["run-a"] || !seen["run-b"] {
		t.Errorf("List() = %v, want run-a and run-b", infos)
	}
}

func TestListMissingRoot(t *testing.T) {
	m := NewManager(ManagerConfig{Root: filepath.Join(t.TempDir(), "never-created")})
	infos, err := m.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if infos != nil {
		t.Errorf("List() = %v, want nil for a missing root", infos)
	}
}
