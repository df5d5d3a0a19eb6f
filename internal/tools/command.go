package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CommandTool runs an external executable as a tool. The request is encoded
// as JSON on stdin; whatever the command prints to stdout becomes the
// output. If stdout parses as a JSON object it is passed through
// structured, otherwise it is returned under the "stdout" key.
type CommandTool struct {
	command string
	args    []string
	pm      *ProcessManager
}

// NewCommandTool creates a command tool from its configuration.
func NewCommandTool(cfg Config, pm *ProcessManager) (*CommandTool, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("command tool requires a command")
	}
	return &CommandTool{
		command: cfg.Command,
		args:    append([]string(nil), cfg.Args...),
		pm:      pm,
	}, nil
}

func (c *CommandTool) Name() string { return c.command }

// Invoke runs the command in the run workspace. Cancellation kills the whole
// process group, so helper processes spawned by the tool do not outlive it.
func (c *CommandTool) Invoke(ctx context.Context, req Request) (Response, error) {
	stdin, err := json.Marshal(map[string]any{
		"run_id": req.RunID,
		"task":   req.TaskID,
		"agent":  req.Agent,
		"action": req.Action,
		"input":  req.Input,
	})
	if err != nil {
		return Response{}, fmt.Errorf("encoding request: %w", err)
	}

	cmd := newCommand(ctx, c.command, c.args...)
	cmd.Dir = req.WorkDir
	cmd.Stdin = strings.NewReader(string(stdin))

	stdout, _, err := executeCommand(ctx, c.pm, cmd)
	if err != nil {
		return Response{}, err
	}

	output := map[string]any{}
	if err := json.Unmarshal(stdout, &output); err != nil {
		output = map[string]any{"stdout": strings.TrimSpace(string(stdout))}
	}
	return Response{Output: output}, nil
}
