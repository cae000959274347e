package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/BreachCache/internal/domain/breach"
	"github.com/Strob0t/BreachCache/internal/port/statestore"
)

// StateStore keeps one JSONB row per cache partition.
type StateStore struct {
	pool *pgxpool.Pool
}

var _ statestore.Store = (*StateStore)(nil)

// NewStateStore creates a StateStore on pool.
func NewStateStore(pool *pgxpool.Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Load returns the partition row, or an empty state when none exists.
func (s *StateStore) Load(ctx context.Context, key string) (breach.PartitionState, error) {
	const q = `SELECT entries FROM cache_partitions WHERE partition_key = $1`

	var raw []byte
	err := s.pool.QueryRow(ctx, q, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return breach.NewPartitionState(), nil
	}
	if err != nil {
		return breach.PartitionState{}, fmt.Errorf("load partition %s: %w", key, err)
	}

	state := breach.NewPartitionState()
	if err := json.Unmarshal(raw, &state.Entries); err != nil {
		return breach.PartitionState{}, fmt.Errorf("decode partition %s: %w", key, err)
	}
	if state.Entries == nil {
		state.Entries = make(map[string]breach.CacheEntry)
	}
	return state, nil
}

// Save upserts the partition row.
func (s *StateStore) Save(ctx context.Context, key string, state breach.PartitionState) error {
	const q = `
		INSERT INTO cache_partitions (partition_key, entries, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (partition_key) DO UPDATE
		SET entries = EXCLUDED.entries, updated_at = now()`

	entries := state.Entries
	if entries == nil {
		entries = map[string]breach.CacheEntry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode partition %s: %w", key, err)
	}
	if _, err := s.pool.Exec(ctx, q, key, raw); err != nil {
		return fmt.Errorf("save partition %s: %w", key, err)
	}
	return nil
}
