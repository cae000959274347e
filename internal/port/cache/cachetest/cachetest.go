// Package cachetest holds a behavioural suite every cache.Cache
// implementation must pass.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/BreachCache/internal/port/cache"
)

// Run exercises c with partition-snapshot shaped keys and values.
func Run(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "partition.c2V0", []byte(`{"entries":{}}`), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, "partition.c2V0")
		if err != nil {
			t.Fatal(err)
		}
		if !found || string(val) != `{"entries":{}}` {
			t.Fatalf("expected snapshot, got found=%v val=%s", found, val)
		}
	})

	t.Run("ZeroTTLKeeps", func(t *testing.T) {
		if err := c.Set(ctx, "partition.bm90dGw", []byte("v"), 0); err != nil {
			t.Fatal(err)
		}
		if _, found, _ := c.Get(ctx, "partition.bm90dGw"); !found {
			t.Fatal("expected value stored without ttl")
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "partition.bWlzcw")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for unknown key")
		}
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		_ = c.Set(ctx, "partition.ZGVs", []byte("v"), time.Minute)
		for range 2 {
			if err := c.Delete(ctx, "partition.ZGVs"); err != nil {
				t.Fatal(err)
			}
		}
		if _, found, _ := c.Get(ctx, "partition.ZGVs"); found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "partition.b3c", []byte("v1"), time.Minute)
		_ = c.Set(ctx, "partition.b3c", []byte("v2"), time.Minute)
		val, _, err := c.Get(ctx, "partition.b3c")
		if err != nil {
			t.Fatal(err)
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})
}
