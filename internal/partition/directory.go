package partition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Strob0t/BreachCache/internal/domain"
	"github.com/Strob0t/BreachCache/internal/domain/breach"
	"github.com/Strob0t/BreachCache/internal/port/statestore"
	"github.com/Strob0t/BreachCache/internal/port/upstream"
)

// Options configures a Directory. They are fixed for the Directory's lifetime
// and shared by every Partition it creates.
type Options struct {
	TTL           time.Duration // lifetime of every entry written by a fetch or an add
	IdleTimeout   time.Duration // idle partitions are passivated after this; 0 keeps them forever
	SweepInterval time.Duration // how often Run looks for idle partitions
}

// Op is an operation executed against a single partition.
type Op func(ctx context.Context, p *Partition) error

// Directory maps a domain to its single live Partition. Operations on the
// same domain run one at a time in submission order; operations on different
// domains run independently.
type Directory struct {
	opts   Options
	source upstream.Source
	store  statestore.Store
	now    func() time.Time // for testing

	mu    sync.Mutex
	slots map[string]*slot
}

// slot is the execution context of one partition. refs counts callers that
// hold or wait for the permit; a slot is only passivated at zero.
type slot struct {
	permit   *semaphore.Weighted
	part     *Partition
	refs     int
	lastUsed time.Time
}

// NewDirectory creates a Directory whose partitions read through source and
// persist to store.
func NewDirectory(source upstream.Source, store statestore.Store, opts Options) *Directory {
	return &Directory{
		opts:   opts,
		source: source,
		store:  store,
		now:    time.Now,
		slots:  make(map[string]*slot),
	}
}

// Dispatch runs op on the partition for key, creating and activating the
// partition on first reference. The permit stays held while op awaits I/O.
func (d *Directory) Dispatch(ctx context.Context, key string, op Op) error {
	s := d.checkout(key)
	defer d.checkin(s)

	if err := s.permit.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("partition %s: %w", key, domain.ErrCancelled)
	}
	defer s.permit.Release(1)

	// Acquire may succeed on an already cancelled context.
	if ctx.Err() != nil {
		return fmt.Errorf("partition %s: %w", key, domain.ErrCancelled)
	}

	if err := s.part.activate(ctx); err != nil {
		return err
	}
	return op(ctx, s.part)
}

// GetBreached looks up a normalized email in the partition for dom.
func (d *Directory) GetBreached(ctx context.Context, dom, email string, now time.Time) (breach.CacheResult, error) {
	var res breach.CacheResult
	err := d.Dispatch(ctx, dom, func(ctx context.Context, p *Partition) error {
		var err error
		res, err = p.Read(ctx, email, now)
		return err
	})
	return res, err
}

// AddBreached registers details for a normalized email in the partition for
// dom. It returns false when the email is already registered.
func (d *Directory) AddBreached(ctx context.Context, dom, email, details string, now time.Time) (bool, error) {
	var added bool
	err := d.Dispatch(ctx, dom, func(ctx context.Context, p *Partition) error {
		var err error
		added, err = p.Write(ctx, email, details, now)
		return err
	})
	return added, err
}

// Len returns the number of partitions held in memory.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.slots)
}

// Passivate drops partitions that have been idle for at least IdleTimeout,
// have no pending operations and no unsaved state. It returns the number of
// partitions dropped. The next reference reloads them from the state store.
func (d *Directory) Passivate(now time.Time) int {
	if d.opts.IdleTimeout <= 0 {
		return 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for key, s := range d.slots {
		if s.refs > 0 || s.part.dirty {
			continue
		}
		if now.Sub(s.lastUsed) < d.opts.IdleTimeout {
			continue
		}
		delete(d.slots, key)
		n++
	}
	return n
}

// Run passivates idle partitions every SweepInterval until ctx is done.
func (d *Directory) Run(ctx context.Context) error {
	if d.opts.IdleTimeout <= 0 || d.opts.SweepInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(d.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := d.Passivate(d.now()); n > 0 {
				slog.Debug("partitions passivated", "count", n, "active", d.Len())
			}
		}
	}
}

func (d *Directory) checkout(key string) *slot {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.slots[key]
	if !ok {
		s = &slot{
			permit: semaphore.NewWeighted(1),
			part:   newPartition(key, d.opts.TTL, d.source, d.store),
		}
		d.slots[key] = s
	}
	s.refs++
	return s
}

func (d *Directory) checkin(s *slot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s.refs--
	s.lastUsed = d.now()
}

