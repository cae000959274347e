// Package memory provides in-process implementations of the upstream and
// state store ports, used for local development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/Strob0t/BreachCache/internal/port/upstream"
)

// Source is a map-backed breach data source.
type Source struct {
	mu      sync.RWMutex
	records map[string]string
}

var _ upstream.Source = (*Source)(nil)

// NewSource creates a Source seeded with email → details records.
func NewSource(seed map[string]string) *Source {
	s := &Source{records: make(map[string]string, len(seed))}
	for email, details := range seed {
		s.records[email] = details
	}
	return s
}

// Fetch returns the recorded details or nil when the email is unknown.
func (s *Source) Fetch(ctx context.Context, email string) (*string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.records[email]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// Add records details for email, replacing any previous record.
func (s *Source) Add(ctx context.Context, email, details string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.records[email] = details
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored records.
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
