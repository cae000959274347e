package otel

import (
	"context"
	"errors"

	"github.com/Strob0t/BreachCache/internal/domain"
	"github.com/Strob0t/BreachCache/internal/port/upstream"
)

// Source traces data source calls and counts their failures. Calls the
// caller abandoned and add conflicts are not counted.
type Source struct {
	inner   upstream.Source
	metrics *Metrics
}

var _ upstream.Source = (*Source)(nil)

// InstrumentSource wraps src.
func InstrumentSource(src upstream.Source, m *Metrics) *Source {
	return &Source{inner: src, metrics: m}
}

// Fetch delegates to the wrapped source.
func (s *Source) Fetch(ctx context.Context, email string) (*string, error) {
	ctx, span := StartUpstreamSpan(ctx, "fetch")
	details, err := s.inner.Fetch(ctx, email)
	s.observe(ctx, "fetch", err)
	EndSpan(span, err)
	return details, err
}

// Add delegates to the wrapped source.
func (s *Source) Add(ctx context.Context, email, details string) error {
	ctx, span := StartUpstreamSpan(ctx, "add")
	err := s.inner.Add(ctx, email, details)
	s.observe(ctx, "add", err)
	EndSpan(span, err)
	return err
}

func (s *Source) observe(ctx context.Context, op string, err error) {
	if err != nil && ctx.Err() == nil && !errors.Is(err, domain.ErrConflict) {
		s.metrics.RecordUpstreamFailure(context.WithoutCancel(ctx), op)
	}
}
