package tools

import (
	"context"
	"time"
)

// Handle is an in-flight asynchronous invocation. Poll reports whether the
// work has finished and, once done, its result.
type Handle interface {
	Poll(ctx context.Context) (done bool, resp Response, err error)
}

// AsyncInvoker is implemented by tools that start work and report completion
// later, rather than blocking inside Invoke. The dispatcher detects this
// interface and polls the returned handle, so both calling styles feed the
// same completion path.
type AsyncInvoker interface {
	Invoker
	Begin(ctx context.Context, req Request) (Handle, error)
}

// DefaultPollInterval is how often Await checks an async handle.
const DefaultPollInterval = 250 * time.Millisecond

// Await polls a handle until it completes or ctx is done.
func Await(ctx context.Context, h Handle, interval time.Duration) (Response, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, resp, err := h.Poll(ctx)
		if err != nil {
			return Response{}, err
		}
		if done {
			return resp, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
}
