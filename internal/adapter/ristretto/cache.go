// Package ristretto implements the cache port with an in-process
// dgraph-io/ristretto cache. It fronts the remote partition snapshot store.
package ristretto

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/Strob0t/BreachCache/internal/port/cache"
)

const bytesPerMB = 1 << 20

// Cache holds partition snapshots in memory, costed by their encoded size.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

var _ cache.Cache = (*Cache)(nil)

// New creates a cache bounded to maxSizeMB megabytes of values.
func New(maxSizeMB int64) (*Cache, error) {
	if maxSizeMB <= 0 {
		return nil, fmt.Errorf("ristretto: max size must be positive, got %d MB", maxSizeMB)
	}
	maxCost := maxSizeMB * bytesPerMB
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		// Snapshots average a few KB; track ten counters per expected item.
		NumCounters: maxCost / 4096 * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	return &Cache{c: c}, nil
}

// Get returns a copy of the stored snapshot.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return append([]byte(nil), val...), true, nil
}

// Set stores value and waits for the write buffer to apply it, so a Get
// issued right after Set observes the new snapshot. Rejected admissions are
// not an error; the caller falls through to the next tier.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := append([]byte(nil), value...)
	if ttl > 0 {
		c.c.SetWithTTL(key, v, int64(len(v)), ttl)
	} else {
		c.c.Set(key, v, int64(len(v)))
	}
	c.c.Wait()
	return nil
}

// Delete drops the key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Close stops ristretto's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
