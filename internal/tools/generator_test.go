package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGeneratorWritesFiles(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator()

	resp, err := gen.Invoke(context.Background(), Request{
		RunID:   "run-1",
		WorkDir: dir,
		Input: map[string]any{
			"files": map[string]any{
				"main.go":            "package main\n",
				"internal/app/app.go": "package app\n",
				"README.md":          "# scaffold\n",
			},
		},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if resp.Output["written"] != 3 {
		t.Errorf("written = %v, want 3", resp.Output["written"])
	}
	if resp.Output["dir"] != dir {
		t.Errorf("dir = %v, want the workspace", resp.Output["dir"])
	}

	content, err := os.ReadFile(filepath.Join(dir, "internal", "app", "app.go"))
	if err != nil {
		t.Fatalf("nested file not written: %v", err)
	}
	if string(content) != "package app\n" {
		t.Errorf("content = %q, want the requested body", content)
	}
}

func TestGeneratorRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator()

	tests := []struct {
		name        string
		req         Request
		errContains string
	}{
		{
			name:        "no workspace",
			req:         Request{Input: map[string]any{"files": map[string]any{"a": "b"}}},
			errContains: "no workspace",
		},
		{
			name:        "missing files object",
			req:         Request{WorkDir: dir, Input: map[string]any{}},
			errContains: `no "files"`,
		},
		{
			name:        "empty files object",
			req:         Request{WorkDir: dir, Input: map[string]any{"files": map[string]any{}}},
			errContains: "empty",
		},
		{
			name:        "non-string content",
			req:         Request{WorkDir: dir, Input: map[string]any{"files": map[string]any{"a.txt": 42}}},
			errContains: "not a string",
		},
		{
			name:        "path traversal",
			req:         Request{WorkDir: dir, Input: map[string]any{"files": map[string]any{"../escape.txt": "x"}}},
			errContains: "escapes",
		},
		{
			name:        "absolute path",
			req:         Request{WorkDir: dir, Input: map[string]any{"files": map[string]any{"/etc/passwd": "x"}}},
			errContains: "absolute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gen.Invoke(context.Background(), tt.req)
			if err == nil {
				t.Fatal("Invoke() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errContains)
			}
		})
	}

	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("rejected requests left %d entries in the workspace", len(entries))
	}
}

func TestSecurePath(t *testing.T) {
	root := "/work/run-1"
	tests := []struct {
		path    string
		wantErr bool
	}{
		{path: "main.go"},
		{path: "a/b/c.txt"},
		{path: "./ok.txt"},
		{path: "..", wantErr: true},
		{path: "../sibling.txt", wantErr: true},
		{path: "a/../../escape.txt", wantErr: true},
		{path: "/abs.txt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			target, err := securePath(root, tt.path)
			if tt.wantErr {
				if err == nil {
					t.Errorf("securePath(%q) = %q, want error", tt.path, target)
				}
				return
			}
			if err != nil {
				t.Errorf("securePath(%q) error = %v", tt.path, err)
			}
			if !strings.HasPrefix(target, root+string(filepath.Separator)) {
				t.Errorf("securePath(%q) = %q, not under the root", tt.path, target)
			}
		})
	}
}
