package tools

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Archiver packages a run workspace into a zip next to it, mirroring how
// generated scaffolds are handed back to callers as a single download.
type Archiver struct{}

// NewArchiver creates an archive tool.
func NewArchiver() *Archiver { return &Archiver{} }

func (a *Archiver) Name() string { return "archive" }

// Invoke zips the workspace directory. An optional "dir" input overrides the
// source directory; the archive lands at "<dir>.zip".
func (a *Archiver) Invoke(ctx context.Context, req Request) (Response, error) {
	dir := req.WorkDir
	if override, ok := req.Input["dir"].(string); ok && override != "" {
		dir = override
	}
	if dir == "" {
		return Response{}, fmt.Errorf("archive: no directory to package for run %q", req.RunID)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return Response{}, fmt.Errorf("archive: %w", err)
	}
	if !info.IsDir() {
		return Response{}, fmt.Errorf("archive: %q is not a directory", dir)
	}

	zipPath := filepath.Clean(dir) + ".zip"
	entries, err := zipDirectory(ctx, dir, zipPath)
	if err != nil {
		os.Remove(zipPath)
		return Response{}, fmt.Errorf("archive: %w", err)
	}

	return Response{Output: map[string]any{
		"archive": zipPath,
		"entries": entries,
	}}, nil
}

// zipDirectory writes every regular file under dir into a zip at zipPath,
// with paths relative to dir. Returns the number of entries written.
func zipDirectory(ctx context.Context, dir, zipPath string) (int, error) {
	out, err := os.Create(zipPath)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	entries := 0

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, f)
		f.Close()
		if err != nil {
			return err
		}

		entries++
		return nil
	})
	if err != nil {
		zw.Close()
		return entries, err
	}

	if err := zw.Close(); err != nil {
		return entries, err
	}
	return entries, out.Close()
}
