package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
)

func TestCircuitBreakerRegistry(t *testing.T) {
	t.Run("same agent returns same breaker", func(t *testing.T) {
		r := NewCircuitBreakerRegistry()
		if r.Get("coder") != r.Get("coder") {
			t.Error("expected the same breaker instance for one agent")
		}
	})

	t.Run("different agents get independent breakers", func(t *testing.T) {
		r := NewCircuitBreakerRegistry()
		if r.Get("coder") == r.Get("reviewer") {
			t.Error("expected distinct breakers per agent")
		}
	})

	t.Run("trips after consecutive failures", func(t *testing.T) {
		r := NewCircuitBreakerRegistry()
		cb := r.Get("flaky")

		for i := 0; i < 5; i++ {
			cb.Execute(func() (interface{}, error) {
				return nil, errors.New("boom")
			})
		}

		if cb.State() != gobreaker.StateOpen {
			t.Errorf("breaker state = %v, want open after 5 consecutive failures", cb.State())
		}

		_, err := cb.Execute(func() (interface{}, error) {
			t.Error("call should not reach the tool while open")
			return nil, nil
		})
		if !errors.Is(err, gobreaker.ErrOpenState) {
			t.Errorf("err = %v, want ErrOpenState", err)
		}
	})

	t.Run("cancellation does not count as failure", func(t *testing.T) {
		r := NewCircuitBreakerRegistry()
		cb := r.Get("cancelled")

		for i := 0; i < 10; i++ {
			cb.Execute(func() (interface{}, error) {
				return nil, context.Canceled
			})
		}

		if cb.State() != gobreaker.StateClosed {
			t.Errorf("breaker state = %v, want closed: cancellations are not tool failures", cb.State())
		}
	})
}
