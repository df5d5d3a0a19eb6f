// Package tools defines the boundary between the scheduler and the external
// collaborators that do the actual work of a task. The scheduler treats
// Request.Input and Response.Output as opaque payloads.
package tools

import (
	"context"
	"fmt"
	"sync"
)

// Request carries one task invocation across the tool boundary.
type Request struct {
	RunID   string
	TaskID  string
	Agent   string
	Action  string
	Input   map[string]any
	WorkDir string // Per-run workspace directory, empty if none
}

// Response is the opaque result of a tool invocation.
type Response struct {
	Output map[string]any
}

// Invoker is the synchronous tool contract. Invoke must honor ctx
// cancellation; the dispatcher will not wait past the task's deadline.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Resolver maps a task's (agent, action) pair to an Invoker. Passed into
// the run controller at construction time; there is no global registry.
type Resolver interface {
	Resolve(agent, action string) (Invoker, error)
}

// Registry is the standard Resolver: invokers registered under capability
// names. Resolution tries the action name first, then the agent name, so a
// workflow can bind either a shared capability or a dedicated per-agent tool.
type Registry struct {
	mu       sync.RWMutex
	invokers map[string]Invoker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{invokers: make(map[string]Invoker)}
}

// Register binds an invoker under the given capability name, replacing any
// previous binding.
func (r *Registry) Register(name string, inv Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invokers[name] = inv
}

// Resolve implements Resolver.
func (r *Registry) Resolve(agent, action string) (Invoker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if inv, ok := r.invokers[action]; ok {
		return inv, nil
	}
	if inv, ok := r.invokers[agent]; ok {
		return inv, nil
	}
	return nil, fmt.Errorf("no tool registered for agent %q action %q", agent, action)
}

// Names returns the registered capability names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.invokers))
	for name := range r.invokers {
		names = append(names, name)
	}
	return names
}

// Config defines a configured tool instance.
type Config struct {
	Type    string   // "echo", "command", "generator", or "archive"
	Command string   // For "command": executable to run
	Args    []string // For "command": fixed arguments
}

// New creates a tool from its configuration. This factory switches on
// cfg.Type and returns the appropriate adapter.
func New(cfg Config, pm *ProcessManager) (Invoker, error) {
	switch cfg.Type {
	case "echo":
		return NewEcho(), nil
	case "command":
		return NewCommandTool(cfg, pm)
	case "generator":
		return NewGenerator(), nil
	case "archive":
		return NewArchiver(), nil
	default:
		return nil, fmt.Errorf("unknown tool type: %s", cfg.Type)
	}
}
