// Package service contains application services.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/BreachCache/internal/adapter/otel"
	"github.com/Strob0t/BreachCache/internal/domain"
	"github.com/Strob0t/BreachCache/internal/domain/breach"
	"github.com/Strob0t/BreachCache/internal/port/eventbus"
)

// Partitions routes breach operations to the cache partition of a domain.
type Partitions interface {
	GetBreached(ctx context.Context, dom, email string, now time.Time) (breach.CacheResult, error)
	AddBreached(ctx context.Context, dom, email, details string, now time.Time) (bool, error)
}

// BreachService validates emails, dispatches them to their domain
// partition and announces new breach records.
type BreachService struct {
	parts   Partitions
	events  eventbus.Publisher
	subject string
	metrics *otel.Metrics
	now     func() time.Time
}

// NewBreachService creates a BreachService. events may be nil to disable
// breach-added notifications; metrics may be nil.
func NewBreachService(parts Partitions, events eventbus.Publisher, subject string, metrics *otel.Metrics) *BreachService {
	if subject == "" {
		subject = eventbus.SubjectBreachAdded
	}
	return &BreachService{
		parts:   parts,
		events:  events,
		subject: subject,
		metrics: metrics,
		now:     time.Now,
	}
}

// Get looks email up. An email that is not listed as breached returns the
// result together with domain.ErrNotFound.
func (s *BreachService) Get(ctx context.Context, email string) (breach.CacheResult, error) {
	start := time.Now()
	normalized, dom, err := breach.ParseEmail(email)
	if err != nil {
		return breach.CacheResult{}, err
	}

	ctx, span := otel.StartLookupSpan(ctx, dom)
	res, err := s.parts.GetBreached(ctx, dom, normalized, s.now())
	otel.EndSpan(span, err)

	outcome := string(res.Source)
	if err != nil {
		outcome = otel.OutcomeError
	}
	s.metrics.RecordLookup(context.WithoutCancel(ctx), outcome, time.Since(start))

	if err != nil {
		return breach.CacheResult{}, err
	}
	if !res.Found {
		return res, fmt.Errorf("email %s: %w", normalized, domain.ErrNotFound)
	}
	return res, nil
}

// Add lists email as breached with details. It returns domain.ErrConflict
// when the email is already listed.
func (s *BreachService) Add(ctx context.Context, email, details string) (string, error) {
	normalized, dom, err := breach.ParseEmail(email)
	if err != nil {
		return "", err
	}

	ctx, span := otel.StartAddSpan(ctx, dom)
	added, err := s.parts.AddBreached(ctx, dom, normalized, details, s.now())
	otel.EndSpan(span, err)

	switch {
	case err != nil:
		s.metrics.RecordWrite(context.WithoutCancel(ctx), otel.WriteError)
		return normalized, err
	case !added:
		s.metrics.RecordWrite(context.WithoutCancel(ctx), otel.WriteDuplicate)
		return normalized, fmt.Errorf("email %s: %w", normalized, domain.ErrConflict)
	}

	s.metrics.RecordWrite(context.WithoutCancel(ctx), otel.WriteAdded)
	s.publishAdded(ctx, normalized, dom, details)
	return normalized, nil
}

// publishAdded announces a new breach record. Failures are logged only;
// the record is already durable.
func (s *BreachService) publishAdded(ctx context.Context, email, dom, details string) {
	if s.events == nil {
		return
	}
	ev := breach.AddedEvent{
		ID:      uuid.NewString(),
		Email:   email,
		Domain:  dom,
		Details: details,
		AddedAt: s.now().UTC(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal breach event", "email", email, "error", err)
		return
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), s.subject, data); err != nil {
		slog.Warn("breach event publish failed", "subject", s.subject, "event_id", ev.ID, "error", err)
		return
	}
	slog.Debug("breach event published", "subject", s.subject, "event_id", ev.ID)
}
