package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// writeConcurrency bounds parallel file writes in the generator.
const writeConcurrency = 8

// Generator writes scaffold files into the run workspace. The input payload
// carries a "files" object mapping relative paths to file contents; each
// entry becomes one file under Request.WorkDir.
type Generator struct{}

// NewGenerator creates a generator tool.
func NewGenerator() *Generator { return &Generator{} }

func (g *Generator) Name() string { return "generator" }

// Invoke writes all requested files with bounded concurrency. The output
// reports the files written and the workspace directory.
func (g *Generator) Invoke(ctx context.Context, req Request) (Response, error) {
	if req.WorkDir == "" {
		return Response{}, fmt.Errorf("generator: no workspace directory for run %q", req.RunID)
	}

	files, err := filesFromInput(req.Input)
	if err != nil {
		return Response{}, fmt.Errorf("generator: %w", err)
	}

	// Deterministic order for the output listing; writes themselves race
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(writeConcurrency)

	for _, path := range paths {
		content := files[path]
		target, err := securePath(req.WorkDir, path)
		if err != nil {
			return Response{}, fmt.Errorf("generator: %w", err)
		}
		grp.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("creating directory for %s: %w", path, err)
			}
			if err := os.WriteFile(target, []byte(content), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return Response{}, err
	}

	return Response{Output: map[string]any{
		"dir":     req.WorkDir,
		"written": len(paths),
		"files":   paths,
	}}, nil
}

// filesFromInput extracts the files map from the opaque payload.
func filesFromInput(input map[string]any) (map[string]string, error) {
	raw, ok := input["files"]
	if !ok {
		return nil, fmt.Errorf("input has no %q object", "files")
	}

	files := make(map[string]string)
	switch m := raw.(type) {
	case map[string]string:
		files = m
	case map[string]any:
		for path, v := range m {
			content, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("file %q content is not a string", path)
			}
			files[path] = content
		}
	default:
		return nil, fmt.Errorf("%q must be an object of path -> content", "files")
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%q object is empty", "files")
	}
	return files, nil
}

// securePath joins a relative file path to the workspace root, rejecting
// absolute paths and traversal outside the workspace.
func securePath(root, path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute path %q not allowed", path)
	}
	target := filepath.Join(root, filepath.Clean(path))
	if !strings.HasPrefix(target, filepath.Clean(root)+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", path)
	}
	return target, nil
}
