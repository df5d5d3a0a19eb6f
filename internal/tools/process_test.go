package tools

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecuteCommandBasic(t *testing.T) {
	ctx := context.Background()
	cmd := newCommand(ctx, "echo", "hello")

	stdout, stderr, err := executeCommand(ctx, nil, cmd)
	if err != nil {
		t.Fatalf("executeCommand() error = %v", err)
	}
	if !strings.Contains(string(stdout), "hello") {
		t.Errorf("stdout = %q, want it to contain hello", stdout)
	}
	if len(stderr) > 0 {
		t.Errorf("stderr = %q, want empty", stderr)
	}
}

func TestExecuteCommandStderrCapture(t *testing.T) {
	ctx := context.Background()
	cmd := newCommand(ctx, "sh", "-c", "echo oops >&2; echo ok")

	stdout, stderr, err := executeCommand(ctx, nil, cmd)
	if err != nil {
		t.Fatalf("executeCommand() error = %v", err)
	}
	if !strings.Contains(string(stdout), "ok") {
		t.Errorf("stdout = %q, want ok", stdout)
	}
	if !strings.Contains(string(stderr), "oops") {
		t.Errorf("stderr = %q, want oops", stderr)
	}
}

func TestExecuteCommandFailureIncludesStderr(t *testing.T) {
	ctx := context.Background()
	cmd := newCommand(ctx, "sh", "-c", "echo broken >&2; exit 3")

	_, _, err := executeCommand(ctx, nil, cmd)
	if err == nil {
		t.Fatal("executeCommand() error = nil, want failure")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error = %q, want it to carry stderr", err.Error())
	}
}

// A writer above the 64KB pipe buffer must not deadlock: both pipes are
// drained concurrently before Wait.
func TestExecuteCommandLargeOutput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := newCommand(ctx, "sh", "-c", "i=0; while [ $i -lt 20000 ]; do echo line-$i; i=$((i+1)); done")

	start := time.Now()
	stdout, _, err := executeCommand(ctx, nil, cmd)
	if err != nil {
		t.Fatalf("executeCommand() error = %v after %v", err, time.Since(start))
	}

	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	if len(lines) != 20000 {
		t.Errorf("got %d lines, want 20000", len(lines))
	}
}

func TestExecuteCommandContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cmd := newCommand(ctx, "sleep", "30")

	start := time.Now()
	_, _, err := executeCommand(ctx, nil, cmd)
	if err == nil {
		t.Fatal("executeCommand() error = nil, want cancellation")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took %v, subprocess was not killed", elapsed)
	}
}

func TestProcessManagerTracking(t *testing.T) {
	pm := NewProcessManager()
	if pm.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", pm.Count())
	}

	ctx := context.Background()
	cmd := newCommand(ctx, "sleep", "10")
	if err := cmd.Start(); err != nil {
		t.Fatalf("starting subprocess: %v", err)
	}
	defer cmd.Wait()

	pm.Track(cmd)
	if pm.Count() != 1 {
		t.Errorf("Count() = %d after Track, want 1", pm.Count())
	}

	if err := pm.KillAll(); err != nil {
		t.Errorf("KillAll() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("subprocess survived KillAll")
	}

	pm.Untrack(cmd)
	if pm.Count() != 0 {
		t.Errorf("Count() = %d after Untrack, want 0", pm.Count())
	}
}
