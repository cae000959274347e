// Package statestore defines the port interface for durable partition state.
package statestore

import (
	"context"

	"github.com/Strob0t/BreachCache/internal/domain/breach"
)

// Store loads and saves the state of one cache partition.
// Implementations must be safe for concurrent use by many partitions.
type Store interface {
	// Load returns the persisted state for key, or an empty state when
	// nothing has been saved yet.
	Load(ctx context.Context, key string) (breach.PartitionState, error)

	// Save replaces the persisted state for key.
	Save(ctx context.Context, key string, state breach.PartitionState) error
}
