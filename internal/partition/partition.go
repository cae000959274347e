// Package partition implements the per-domain breach cache: a Partition owns
// the cached entries of one email domain and a Directory routes operations
// to exactly one Partition per domain, one at a time and in submission order.
package partition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/BreachCache/internal/domain"
	"github.com/Strob0t/BreachCache/internal/domain/breach"
	"github.com/Strob0t/BreachCache/internal/port/statestore"
	"github.com/Strob0t/BreachCache/internal/port/upstream"
)

// Partition holds the cached entries of one domain. It is not safe for
// concurrent use; the Directory serializes every call.
type Partition struct {
	key    string
	ttl    time.Duration
	source upstream.Source
	store  statestore.Store

	state  breach.PartitionState
	loaded bool
	dirty  bool // in-memory state differs from the last successful save
}

func newPartition(key string, ttl time.Duration, source upstream.Source, store statestore.Store) *Partition {
	return &Partition{
		key:    key,
		ttl:    ttl,
		source: source,
		store:  store,
		state:  breach.NewPartitionState(),
	}
}

// Key returns the domain this partition owns.
func (p *Partition) Key() string {
	return p.key
}

// activate loads the persisted state on first use. A failed load leaves the
// partition inactive so the next operation retries.
func (p *Partition) activate(ctx context.Context) error {
	if p.loaded {
		return nil
	}

	state, err := p.store.Load(ctx, p.key)
	if err != nil {
		if cancelled(ctx, err) {
			return fmt.Errorf("load partition %s: %w", p.key, domain.ErrCancelled)
		}
		return fmt.Errorf("load partition %s: %w: %w", p.key, domain.ErrPersistence, err)
	}
	if state.Entries == nil {
		state = breach.NewPartitionState()
	}

	p.state = state
	p.loaded = true
	slog.Debug("partition activated", "domain", p.key, "entries", len(state.Entries))
	return nil
}

// Read answers a lookup for a normalized email. Fresh entries are served
// without touching the data source. Expired or missing entries are fetched;
// when the fetch fails an expired entry is still served as stale.
func (p *Partition) Read(ctx context.Context, email string, now time.Time) (breach.CacheResult, error) {
	prior, ok := p.state.Entries[email]
	if ok && prior.Fresh(now) {
		slog.Debug("cache hit", "email", email, "domain", p.key)
		return breach.NewResult(email, prior, breach.SourceCache), nil
	}

	slog.Debug("cache miss", "email", email, "domain", p.key, "expired", ok)

	details, err := p.source.Fetch(ctx, email)
	if err != nil {
		err = classifyUpstream(ctx, err)
		if errors.Is(err, domain.ErrCancelled) {
			return breach.CacheResult{}, fmt.Errorf("fetch %s: %w", email, err)
		}

		slog.Warn("data source failure", "email", email, "domain", p.key, "stale_available", ok, "error", err)
		if ok {
			return breach.NewResult(email, prior, breach.SourceStale), nil
		}
		return breach.CacheResult{}, fmt.Errorf("fetch %s: %w", email, err)
	}

	entry := breach.CacheEntry{Details: details, ExpiresAt: now.Add(p.ttl)}
	p.state.Entries[email] = entry

	if err := p.persist(ctx); err != nil {
		return breach.CacheResult{}, err
	}
	return breach.NewResult(email, entry, breach.SourceUpstream), nil
}

// Write registers details as a breach for a normalized email. It returns
// false without calling the data source when the email is already
// registered. A cached "not found" entry does not block the write.
func (p *Partition) Write(ctx context.Context, email, details string, now time.Time) (bool, error) {
	if existing, ok := p.state.Entries[email]; ok && existing.Breached() {
		slog.Info("attempt to add already breached email", "email", email, "domain", p.key)
		return false, nil
	}

	if err := p.source.Add(ctx, email, details); err != nil {
		if errors.Is(err, domain.ErrConflict) && ctx.Err() == nil {
			return false, p.adoptExisting(ctx, email, now)
		}
		return false, fmt.Errorf("add %s: %w", email, classifyUpstream(ctx, err))
	}

	p.state.Entries[email] = breach.CacheEntry{Details: &details, ExpiresAt: now.Add(p.ttl)}

	if err := p.persist(ctx); err != nil {
		return false, err
	}

	slog.Info("breached email added", "email", email, "domain", p.key)
	return true, nil
}

// adoptExisting caches the record the data source kept when it rejected a
// write as a duplicate. A failed lookup leaves the state untouched; the
// write is a duplicate either way.
func (p *Partition) adoptExisting(ctx context.Context, email string, now time.Time) error {
	details, err := p.source.Fetch(ctx, email)
	if err != nil {
		err = classifyUpstream(ctx, err)
		if errors.Is(err, domain.ErrCancelled) {
			return fmt.Errorf("fetch %s: %w", email, err)
		}
		slog.Warn("could not read existing record", "email", email, "domain", p.key, "error", err)
		return nil
	}
	if details == nil {
		return nil
	}

	p.state.Entries[email] = breach.CacheEntry{Details: details, ExpiresAt: now.Add(p.ttl)}
	return p.persist(ctx)
}

// persist saves the current state. The in-memory mutation has already
// happened, so the save is detached from caller cancellation.
func (p *Partition) persist(ctx context.Context) error {
	p.dirty = true
	if err := p.store.Save(context.WithoutCancel(ctx), p.key, p.state); err != nil {
		slog.Error("partition save failed", "domain", p.key, "error", err)
		return fmt.Errorf("save partition %s: %w: %w", p.key, domain.ErrPersistence, err)
	}
	p.dirty = false
	return nil
}

// classifyUpstream maps a data source error onto ErrCancelled or
// ErrUpstreamUnavailable.
func classifyUpstream(ctx context.Context, err error) error {
	switch {
	case cancelled(ctx, err):
		return domain.ErrCancelled
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
}

// cancelled reports whether err stems from the caller giving up. A deadline
// that only the data source imposed on itself is an upstream failure.
func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, domain.ErrCancelled)
}
