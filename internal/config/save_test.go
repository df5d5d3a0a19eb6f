package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveCreatesFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.Tools["scaffold"] = ToolConfig{Type: "command", Command: "scaffold-cli", Args: []string{"-v"}}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}
	var decoded Config
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("saved config is not valid JSON: %v", err)
	}
	if decoded.Tools["scaffold"].Command != "scaffold-cli" {
		t.Errorf("decoded tools = %v, want the saved binding", decoded.Tools)
	}
	if decoded.Defaults != cfg.Defaults {
		t.Errorf("decoded defaults = %+v, want %+v", decoded.Defaults, cfg.Defaults)
	}
}

func TestSaveCreatesParentDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "deep", "config.json")

	if err := Save(DefaultConfig(), path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file missing: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	cfg.DatabasePath = "/tmp/runs.db"
	cfg.Defaults.MaxParallelAgents = 7

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DatabasePath != "/tmp/runs.db" {
		t.Errorf("database path = %q, want the saved value", loaded.DatabasePath)
	}
	if loaded.Defaults.MaxParallelAgents != 7 {
		t.Errorf("max parallel = %d, want 7", loaded.Defaults.MaxParallelAgents)
	}
}
