package tools

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type namedStub struct{ name string }

func (s *namedStub) Name() string { return s.name }

func (s *namedStub) Invoke(ctx context.Context, req Request) (Response, error) {
	return Response{Output: map[string]any{"tool": s.name}}, nil
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	r.Register("generate", &namedStub{name: "shared-generator"})
	r.Register("backend", &namedStub{name: "backend-tool"})

	t.Run("action binding wins", func(t *testing.T) {
		inv, err := r.Resolve("backend", "generate")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if inv.Name() != "shared-generator" {
			t.Errorf("resolved %q, want the action binding", inv.Name())
		}
	})

	t.Run("falls back to agent binding", func(t *testing.T) {
		inv, err := r.Resolve("backend", "unbound-action")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if inv.Name() != "backend-tool" {
			t.Errorf("resolved %q, want the agent binding", inv.Name())
		}
	})

	t.Run("unknown pair", func(t *testing.T) {
		_, err := r.Resolve("nobody", "nothing")
		if err == nil {
			t.Fatal("Resolve() error = nil, want error")
		}
		if !strings.Contains(err.Error(), "no tool registered") {
			t.Errorf("error = %q, want it to name the missing binding", err.Error())
		}
	})

	t.Run("register replaces", func(t *testing.T) {
		r.Register("generate", &namedStub{name: "v2"})
		inv, _ := r.Resolve("", "generate")
		if inv.Name() != "v2" {
			t.Errorf("resolved %q, want the replacement", inv.Name())
		}
	})
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  bool
	}{
		{name: "echo", cfg: Config{Type: "echo"}, wantName: "echo"},
		{name: "generator", cfg: Config{Type: "generator"}, wantName: "generator"},
		{name: "archive", cfg: Config{Type: "archive"}, wantName: "archive"},
		{name: "command", cfg: Config{Type: "command", Command: "scaffold", Args: []string{"-v"}}, wantName: "scaffold"},
		{name: "command without executable", cfg: Config{Type: "command"}, wantErr: true},
		{name: "unknown type", cfg: Config{Type: "quantum"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := New(tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("New() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if inv.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", inv.Name(), tt.wantName)
			}
		})
	}
}

func TestEchoInvoke(t *testing.T) {
	echo := NewEcho()
	resp, err := echo.Invoke(context.Background(), Request{
		Agent:  "architect",
		Action: "design",
		Input:  map[string]any{"topic": "payments"},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	payload, ok := resp.Output["echo"].(map[string]any)
	if !ok || payload["topic"] != "payments" {
		t.Errorf("output = %v, want the input echoed back", resp.Output)
	}
	if resp.Output["agent"] != "architect" || resp.Output["action"] != "design" {
		t.Errorf("output = %v, want the identity fields", resp.Output)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := echo.Invoke(ctx, Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Invoke() with cancelled ctx = %v, want context.Canceled", err)
	}
}

type countingHandle struct {
	polls int32
	need  int32
}

func (h *countingHandle) Poll(ctx context.Context) (bool, Response, error) {
	if atomic.AddInt32(&h.polls, 1) >= h.need {
		return true, Response{Output: map[string]any{"done": true}}, nil
	}
	return false, Response{}, nil
}

func TestAwait(t *testing.T) {
	t.Run("polls until done", func(t *testing.T) {
		h := &countingHandle{need: 3}
		resp, err := Await(context.Background(), h, time.Millisecond)
		if err != nil {
			t.Fatalf("Await() error = %v", err)
		}
		if resp.Output["done"] != true {
			t.Errorf("output = %v, want the handle result", resp.Output)
		}
		if got := atomic.LoadInt32(&h.polls); got != 3 {
			t.Errorf("polled %d times, want 3", got)
		}
	})

	t.Run("context cancellation stops polling", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		h := &countingHandle{need: 1 << 30}
		_, err := Await(ctx, h, time.Millisecond)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Await() error = %v, want context.DeadlineExceeded", err)
		}
	})
}
