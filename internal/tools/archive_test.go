package tools

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		target := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(target, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestArchiverZipsWorkspace(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run-1")
	writeTree(t, dir, map[string]string{
		"main.go":          "package main\n",
		"internal/app.go":  "package internal\n",
		"docs/readme.md":   "# docs\n",
	})

	arch := NewArchiver()
	resp, err := arch.Invoke(context.Background(), Request{RunID: "run-1", WorkDir: dir})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	zipPath, _ := resp.Output["archive"].(string)
	if zipPath != dir+".zip" {
		t.Errorf("archive = %q, want %q", zipPath, dir+".zip")
	}
	if resp.Output["entries"] != 3 {
		t.Errorf("entries = %v, want 3", resp.Output["entries"])
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	defer zr.Close()

	got := map[string]string{}
	for _, f := range zr.File {
		r, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		body, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			t.Fatal(err)
		}
		got[f.Name] = string(body)
	}

	if got["main.go"] != "package main\n" {
		t.Errorf("main.go = %q, want the original content", got["main.go"])
	}
	if _, ok := got["internal/app.go"]; !ok {
		t.Errorf("archive entries = %v, missing the nested file with a slash path", got)
	}
}

func TestArchiverInputOverridesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "explicit")
	writeTree(t, dir, map[string]string{"one.txt": "1"})

	arch := NewArchiver()
	resp, err := arch.Invoke(context.Background(), Request{
		WorkDir: "/does/not/matter",
		Input:   map[string]any{"dir": dir},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if resp.Output["archive"] != dir+".zip" {
		t.Errorf("archive = %v, want the override target", resp.Output["archive"])
	}
}

func TestArchiverErrors(t *testing.T) {
	arch := NewArchiver()

	if _, err := arch.Invoke(context.Background(), Request{}); err == nil {
		t.Error("Invoke() with no directory should fail")
	}
	if _, err := arch.Invoke(context.Background(), Request{WorkDir: "/no/such/dir"}); err == nil {
		t.Error("Invoke() with a missing directory should fail")
	}

	file := filepath.Join(t.TempDir(), "plain.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := arch.Invoke(context.Background(), Request{WorkDir: file}); err == nil {
		t.Error("Invoke() on a regular file should fail")
	}
}
