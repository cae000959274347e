// Package natskv implements the cache port on a NATS JetStream key-value
// bucket. It is the durable tier for partition snapshots.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/BreachCache/internal/port/cache"
)

// Cache stores values in a JetStream KV bucket.
type Cache struct {
	kv jetstream.KeyValue
}

var _ cache.Cache = (*Cache)(nil)

// New wraps an existing bucket.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

// Get returns the latest revision of key. Deleted and purged keys read as
// a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.kv.Get(ctx, key)
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound), errors.Is(err, jetstream.ErrKeyDeleted):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("natskv get %s/%s: %w", c.kv.Bucket(), key, err)
	}
	return entry.Value(), true, nil
}

// Set writes a new revision. Expiry is a bucket-level setting, so ttl is
// ignored here.
func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if _, err := c.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("natskv put %s/%s: %w", c.kv.Bucket(), key, err)
	}
	return nil
}

// Delete purges key together with its history.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Purge(ctx, key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("natskv purge %s/%s: %w", c.kv.Bucket(), key, err)
	}
	return nil
}
