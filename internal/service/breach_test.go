package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/BreachCache/internal/domain"
	"github.com/Strob0t/BreachCache/internal/domain/breach"
)

// fakePartitions records dispatched calls and returns canned answers.
type fakePartitions struct {
	mu       sync.Mutex
	result   breach.CacheResult
	added    bool
	err      error
	getCalls []string // dom|email
	addCalls []string
}

func (f *fakePartitions) GetBreached(_ context.Context, dom, email string, _ time.Time) (breach.CacheResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls = append(f.getCalls, dom+"|"+email)
	return f.result, f.err
}

func (f *fakePartitions) AddBreached(_ context.Context, dom, email, _ string, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls = append(f.addCalls, dom+"|"+email)
	return f.added, f.err
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestBreachService_GetNormalizesAndRoutes(t *testing.T) {
	d := "Adobe"
	parts := &fakePartitions{result: breach.CacheResult{Email: "bob@example.com", Details: &d, Found: true, Source: breach.SourceUpstream}}
	svc := NewBreachService(parts, nil, "", nil)

	res, err := svc.Get(context.Background(), "  Bob@Example.COM ")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Found {
		t.Fatal("expected found result")
	}
	if len(parts.getCalls) != 1 || parts.getCalls[0] != "example.com|bob@example.com" {
		t.Fatalf("unexpected dispatch %v", parts.getCalls)
	}
}

func TestBreachService_GetNotFound(t *testing.T) {
	parts := &fakePartitions{result: breach.CacheResult{Email: "a@x.com", Source: breach.SourceCache, IsFromCache: true}}
	svc := NewBreachService(parts, nil, "", nil)

	res, err := svc.Get(context.Background(), "a@x.com")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if res.Email != "a@x.com" {
		t.Fatalf("expected result alongside not found, got %+v", res)
	}
}

func TestBreachService_InvalidEmailNotDispatched(t *testing.T) {
	tests := []string{"", "   ", "no-at-sign", "trailing@"}
	for _, email := range tests {
		t.Run(email, func(t *testing.T) {
			parts := &fakePartitions{}
			svc := NewBreachService(parts, nil, "", nil)

			if _, err := svc.Get(context.Background(), email); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Get: expected ErrValidation, got %v", err)
			}
			if _, err := svc.Add(context.Background(), email, "d"); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("Add: expected ErrValidation, got %v", err)
			}
			if len(parts.getCalls)+len(parts.addCalls) != 0 {
				t.Fatal("invalid email must not reach a partition")
			}
		})
	}
}

func TestBreachService_GetPropagatesErrors(t *testing.T) {
	parts := &fakePartitions{err: domain.ErrUpstreamUnavailable}
	svc := NewBreachService(parts, nil, "", nil)

	if _, err := svc.Get(context.Background(), "a@x.com"); !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestBreachService_AddPublishesEvent(t *testing.T) {
	parts := &fakePartitions{added: true}
	pub := &fakePublisher{}
	svc := NewBreachService(parts, pub, "breaches.added", nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	email, err := svc.Add(context.Background(), "New@Example.com", "Collection #1")
	if err != nil {
		t.Fatal(err)
	}
	if email != "new@example.com" {
		t.Fatalf("expected normalized email, got %s", email)
	}
	if len(pub.payloads) != 1 || pub.subjects[0] != "breaches.added" {
		t.Fatalf("expected one event on breaches.added, got %v", pub.subjects)
	}

	var ev breach.AddedEvent
	if err := json.Unmarshal(pub.payloads[0], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.ID == "" || ev.Email != "new@example.com" || ev.Domain != "example.com" || ev.Details != "Collection #1" || !ev.AddedAt.Equal(fixed) {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestBreachService_AddDuplicate(t *testing.T) {
	parts := &fakePartitions{added: false}
	pub := &fakePublisher{}
	svc := NewBreachService(parts, pub, "", nil)

	_, err := svc.Add(context.Background(), "a@x.com", "d")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if len(pub.payloads) != 0 {
		t.Fatal("duplicate must not publish an event")
	}
}

func TestBreachService_PublishFailureIgnored(t *testing.T) {
	parts := &fakePartitions{added: true}
	pub := &fakePublisher{err: errors.New("nats down")}
	svc := NewBreachService(parts, pub, "", nil)

	if _, err := svc.Add(context.Background(), "a@x.com", "d"); err != nil {
		t.Fatalf("publish failure must not fail the add, got %v", err)
	}
}
