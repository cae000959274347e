// Package kvstate persists partition state as JSON snapshots in any
// byte-oriented cache.Cache, such as the tiered ristretto + NATS KV stack.
package kvstate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/BreachCache/internal/domain/breach"
	"github.com/Strob0t/BreachCache/internal/port/cache"
	"github.com/Strob0t/BreachCache/internal/port/statestore"
)

const keyPrefix = "partition."

// Store implements statestore.Store on top of a cache.Cache.
type Store struct {
	kv cache.Cache
}

var _ statestore.Store = (*Store)(nil)

// New creates a Store writing to kv.
func New(kv cache.Cache) *Store {
	return &Store{kv: kv}
}

// Key maps a partition key onto the restricted KV key alphabet.
func Key(partition string) string {
	return keyPrefix + base64.RawURLEncoding.EncodeToString([]byte(partition))
}

// Load returns the snapshot for key, or an empty state if none exists.
func (s *Store) Load(ctx context.Context, key string) (breach.PartitionState, error) {
	data, ok, err := s.kv.Get(ctx, Key(key))
	if err != nil {
		return breach.PartitionState{}, fmt.Errorf("load partition %s: %w", key, err)
	}
	if !ok {
		return breach.NewPartitionState(), nil
	}
	var state breach.PartitionState
	if err := json.Unmarshal(data, &state); err != nil {
		return breach.PartitionState{}, fmt.Errorf("decode partition %s: %w", key, err)
	}
	if state.Entries == nil {
		state.Entries = make(map[string]breach.CacheEntry)
	}
	return state, nil
}

// Save writes a snapshot for key. Snapshots never expire on their own;
// entry freshness is decided by the partition.
func (s *Store) Save(ctx context.Context, key string, state breach.PartitionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode partition %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, Key(key), data, 0); err != nil {
		return fmt.Errorf("save partition %s: %w", key, err)
	}
	return nil
}
