package orchestrator

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aristath/appforge/internal/scheduler"
)

// DelayFunc returns how long to wait before requeueing a task for its next
// attempt. attempt is the number of attempts completed so far.
type DelayFunc func(attempt int) time.Duration

// ZeroDelay requeues immediately. This is the default: failed tasks go
// straight back into the ready set, and spacing attempts out is an explicit
// opt-in via ExponentialDelay or a custom DelayFunc.
func ZeroDelay(int) time.Duration { return 0 }

// ExponentialDelay builds a DelayFunc from backoff's exponential policy:
// the n-th retry waits roughly InitialInterval * Multiplier^(n-1), jittered,
// capped at MaxInterval.
func ExponentialDelay(cfg RetryConfig) DelayFunc {
	return func(attempt int) time.Duration {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = cfg.InitialInterval
		policy.MaxInterval = cfg.MaxInterval
		policy.MaxElapsedTime = 0 // The scheduler bounds attempts, not elapsed time
		policy.Multiplier = cfg.Multiplier
		policy.RandomizationFactor = cfg.RandomizationFactor

		delay := policy.NextBackOff()
		for i := 1; i < attempt; i++ {
			delay = policy.NextBackOff()
		}
		return delay
	}
}

// Policy decides whether a failed or timed-out task gets another attempt.
// Built per run from the run settings; immutable while the run executes.
type Policy struct {
	Enabled    bool
	MaxRetries int
	Delay      DelayFunc
}

// PolicyFromSettings derives the retry policy for one run. delay may be nil,
// in which case ZeroDelay is used.
func PolicyFromSettings(settings scheduler.Settings, delay DelayFunc) Policy {
	if delay == nil {
		delay = ZeroDelay
	}
	return Policy{
		Enabled:    settings.RetryFailed,
		MaxRetries: settings.MaxRetries,
		Delay:      delay,
	}
}

// ShouldRetry reports whether a task that just failed its attempt-th attempt
// gets another one. Only tool failures and timeouts are retryable; with
// MaxRetries m, a task is attempted at most m+1 times.
func (p Policy) ShouldRetry(attempt int, kind OutcomeKind) bool {
	if !p.Enabled {
		return false
	}
	if kind != OutcomeFailure && kind != OutcomeTimeout {
		return false
	}
	return attempt <= p.MaxRetries
}

// NextDelay returns the wait before the next attempt.
func (p Policy) NextDelay(attempt int) time.Duration {
	if p.Delay == nil {
		return 0
	}
	return p.Delay(attempt)
}
