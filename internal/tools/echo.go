package tools

import (
	"context"
)

// Echo is a trivial tool that returns its input as output. Useful for
// exercising a workflow end to end without external collaborators.
type Echo struct{}

// NewEcho creates an echo tool.
func NewEcho() *Echo { return &Echo{} }

func (e *Echo) Name() string { return "echo" }

// Invoke returns the request input under the "echo" key.
func (e *Echo) Invoke(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return Response{Output: map[string]any{
		"echo":   req.Input,
		"agent":  req.Agent,
		"action": req.Action,
	}}, nil
}
