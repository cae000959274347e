// Package tiered layers a fast local cache over an authoritative remote one.
package tiered

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/BreachCache/internal/port/cache"
)

// Cache reads through L1 to L2 and writes L2 first. L2 holds the
// authoritative copy; L1 failures are logged and never fail a call.
type Cache struct {
	l1    cache.Cache
	l2    cache.Cache
	l1TTL time.Duration
}

var _ cache.Cache = (*Cache)(nil)

// New creates a tiered cache. l1TTL bounds how long L1 keeps a value.
func New(l1, l2 cache.Cache, l1TTL time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1TTL: l1TTL}
}

// Get checks L1, then L2, backfilling L1 on an L2 hit.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		slog.Warn("l1 cache get failed", "key", key, "error", err)
	} else if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}
	if err := c.l1.Set(ctx, key, val, c.l1TTL); err != nil {
		slog.Warn("l1 cache backfill failed", "key", key, "error", err)
	}
	return val, true, nil
}

// Set writes L2, then L1. If L2 fails the L1 copy is dropped so readers
// never see a value L2 does not have.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		if delErr := c.l1.Delete(ctx, key); delErr != nil {
			slog.Warn("l1 cache invalidate failed", "key", key, "error", delErr)
		}
		return err
	}
	l1TTL := c.l1TTL
	if ttl > 0 && (l1TTL <= 0 || ttl < l1TTL) {
		l1TTL = ttl
	}
	if err := c.l1.Set(ctx, key, value, l1TTL); err != nil {
		slog.Warn("l1 cache set failed", "key", key, "error", err)
	}
	return nil
}

// Delete removes from L1, then L2.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		slog.Warn("l1 cache delete failed", "key", key, "error", err)
	}
	return c.l2.Delete(ctx, key)
}
