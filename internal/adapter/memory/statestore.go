package memory

import (
	"context"
	"sync"

	"github.com/Strob0t/BreachCache/internal/domain/breach"
	"github.com/Strob0t/BreachCache/internal/port/statestore"
)

// StateStore keeps partition snapshots in a map. Load and Save copy the
// state so callers never share entries with the store.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]breach.PartitionState
}

var _ statestore.Store = (*StateStore)(nil)

// NewStateStore creates an empty StateStore.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]breach.PartitionState)}
}

// Load returns a copy of the saved state for key.
func (s *StateStore) Load(_ context.Context, key string) (breach.PartitionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key]
	if !ok {
		return breach.NewPartitionState(), nil
	}
	return st.Clone(), nil
}

// Save stores a copy of state under key.
func (s *StateStore) Save(_ context.Context, key string, state breach.PartitionState) error {
	s.mu.Lock()
	s.states[key] = state.Clone()
	s.mu.Unlock()
	return nil
}
