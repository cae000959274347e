package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Strob0t/BreachCache/internal/domain"
	"github.com/Strob0t/BreachCache/internal/port/upstream"
)

// GuardedSource protects an upstream.Source with a circuit breaker and a
// per-call timeout. Every failure it returns wraps domain.ErrUpstreamUnavailable
// unless the caller's own context ended or Add reported a conflict.
type GuardedSource struct {
	inner   upstream.Source
	breaker *Breaker
	timeout time.Duration
}

var _ upstream.Source = (*GuardedSource)(nil)

// NewGuardedSource wraps inner. A zero timeout leaves calls bounded only by
// the caller's context.
func NewGuardedSource(inner upstream.Source, breaker *Breaker, timeout time.Duration) *GuardedSource {
	return &GuardedSource{inner: inner, breaker: breaker, timeout: timeout}
}

// Fetch delegates to the wrapped source.
func (g *GuardedSource) Fetch(ctx context.Context, email string) (*string, error) {
	var details *string
	err := g.call(ctx, func(ctx context.Context) error {
		var err error
		details, err = g.inner.Fetch(ctx, email)
		return err
	})
	if err != nil {
		return nil, g.translate(ctx, "fetch", err)
	}
	return details, nil
}

// Add delegates to the wrapped source. A conflict is a healthy answer: it
// does not count against the breaker and is returned unchanged.
func (g *GuardedSource) Add(ctx context.Context, email, details string) error {
	var conflict error
	err := g.call(ctx, func(ctx context.Context) error {
		err := g.inner.Add(ctx, email, details)
		if errors.Is(err, domain.ErrConflict) {
			conflict = err
			return nil
		}
		return err
	})
	if err != nil {
		return g.translate(ctx, "add", err)
	}
	return conflict
}

// Breaker exposes the breaker for health reporting.
func (g *GuardedSource) Breaker() *Breaker {
	return g.breaker
}

func (g *GuardedSource) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		if g.timeout <= 0 {
			return fn(ctx)
		}
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return fn(callCtx)
	})
}

func (g *GuardedSource) translate(ctx context.Context, op string, err error) error {
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("upstream %s: %w", op, domain.ErrCancelled)
	case errors.Is(err, ErrCircuitOpen):
		return fmt.Errorf("upstream %s: %w: %w", op, domain.ErrUpstreamUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		// Our own timeout fired; keep the deadline out of the chain so callers
		// do not mistake it for their own.
		return fmt.Errorf("upstream %s: %w: timed out after %s", op, domain.ErrUpstreamUnavailable, g.timeout)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return fmt.Errorf("upstream %s: %w", op, err)
	default:
		return fmt.Errorf("upstream %s: %w: %w", op, domain.ErrUpstreamUnavailable, err)
	}
}
