package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config,
// defaults. Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.appforge/config.json
// Project: .appforge/config.json (relative to cwd)
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".appforge", "config.json")
	projectPath := filepath.Join(".appforge", "config.json")

	return Load(globalPath, projectPath)
}

// fileConfig mirrors Config with pointer fields so a partial file only
// overrides what it actually sets.
type fileConfig struct {
	DatabasePath *string               `json:"database_path"`
	WorkspaceDir *string               `json:"workspace_dir"`
	Defaults     *RunDefaults          `json:"defaults"`
	Tools        map[string]ToolConfig `json:"tools"`
}

// mergeConfigFile reads a JSON config file and merges it into the base
// config. Missing files are silently skipped.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded fileConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.DatabasePath != nil {
		base.DatabasePath = *loaded.DatabasePath
	}
	if loaded.WorkspaceDir != nil {
		base.WorkspaceDir = *loaded.WorkspaceDir
	}
	if loaded.Defaults != nil {
		base.Defaults = *loaded.Defaults
	}
	for key, tool := range loaded.Tools {
		base.Tools[key] = tool
	}

	return nil
}
