package partition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/BreachCache/internal/domain"
)

// waitPending polls until n callers hold or wait for key's permit.
func waitPending(t *testing.T, d *Directory, key string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for d.pending(key) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d pending operations on %s, have %d", n, key, d.pending(key))
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDispatch_ConcurrentDuplicateWrites(t *testing.T) {
	d, src, _ := newTestDirectory(5 * time.Minute)
	src.delay = time.Millisecond

	const writers = 20
	var successes atomic.Int32
	var g errgroup.Group
	for i := range writers {
		g.Go(func() error {
			added, err := d.AddBreached(context.Background(), "a.com", "new@a.com", fmt.Sprintf("leak-%d", i), t0)
			if added {
				successes.Add(1)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if got := successes.Load(); got != 1 {
		t.Fatalf("expected exactly 1 successful write, got %d", got)
	}
	if got := src.addCount(); got != 1 {
		t.Errorf("expected exactly 1 data source write, got %d", got)
	}
}

func TestDispatch_SerializesSameDomain(t *testing.T) {
	d, src, _ := newTestDirectory(0)
	src.delay = 2 * time.Millisecond

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.GetBreached(context.Background(), "a.com", fmt.Sprintf("u%d@a.com", i), t0)
		}()
	}
	wg.Wait()

	if got := src.maxConcurrent("a.com"); got != 1 {
		t.Fatalf("expected at most 1 concurrent call for a.com, got %d", got)
	}
	if got := src.fetchCount(); got != 10 {
		t.Errorf("expected 10 fetches, got %d", got)
	}
}

func TestDispatch_DomainsIndependent(t *testing.T) {
	d, _, _ := newTestDirectory(5 * time.Minute)
	ctx := context.Background()

	// Hold a.com's permit until released.
	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = d.Dispatch(ctx, "a.com", func(context.Context, *Partition) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	done := make(chan error, 1)
	go func() {
		_, err := d.GetBreached(ctx, "b.com", "user@b.com", t0)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("b.com blocked behind a.com")
	}
}

func TestDispatch_SubmissionOrder(t *testing.T) {
	d, _, _ := newTestDirectory(5 * time.Minute)
	ctx := context.Background()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = d.Dispatch(ctx, "a.com", func(context.Context, *Partition) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	const n = 5
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Dispatch(ctx, "a.com", func(context.Context, *Partition) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		// Queue each operation before submitting the next.
		waitPending(t, d, "a.com", i+2)
	}

	close(release)
	wg.Wait()

	for i, v := range order {
		if v != i {
			t.Fatalf("expected submission order, got %v", order)
		}
	}
}

func TestDispatch_CancelledWhileQueued(t *testing.T) {
	d, _, _ := newTestDirectory(5 * time.Minute)
	ctx := context.Background()

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = d.Dispatch(ctx, "a.com", func(context.Context, *Partition) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	cctx, cancel := context.WithCancel(ctx)
	ran := false
	done := make(chan error, 1)
	go func() {
		done <- d.Dispatch(cctx, "a.com", func(context.Context, *Partition) error {
			ran = true
			return nil
		})
	}()
	waitPending(t, d, "a.com", 2)
	cancel()

	err := <-done
	if !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if ran {
		t.Error("cancelled operation must not run")
	}
}

func TestPassivate_ReloadsFromStore(t *testing.T) {
	src := newFakeSource()
	store := newFakeStore()
	d := NewDirectory(src, store, Options{TTL: time.Hour, IdleTimeout: time.Minute})
	clock := t0
	d.now = func() time.Time { return clock }
	ctx := context.Background()

	if _, err := d.AddBreached(ctx, "a.com", "u@a.com", "leak", t0); err != nil {
		t.Fatal(err)
	}
	if d.Len() != 1 {
		t.Fatalf("expected 1 active partition, got %d", d.Len())
	}

	if n := d.Passivate(t0.Add(30 * time.Second)); n != 0 {
		t.Fatalf("expected no passivation before idle timeout, got %d", n)
	}
	if n := d.Passivate(t0.Add(time.Minute)); n != 1 {
		t.Fatalf("expected 1 passivated partition, got %d", n)
	}
	if d.Len() != 0 {
		t.Fatalf("expected no active partitions, got %d", d.Len())
	}

	res, err := d.GetBreached(ctx, "a.com", "u@a.com", t0.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Found || !res.IsFromCache {
		t.Errorf("expected reactivated partition to serve cached entry, got %+v", res)
	}
	if loads, _ := store.counts(); loads != 2 {
		t.Errorf("expected state reloaded, got %d loads", loads)
	}
	if src.fetchCount() != 0 {
		t.Error("expected no fetch after reactivation")
	}
}

func TestPassivate_SkipsBusyAndDirty(t *testing.T) {
	src := newFakeSource()
	store := newFakeStore()
	d := NewDirectory(src, store, Options{TTL: time.Hour, IdleTimeout: time.Minute})
	d.now = func() time.Time { return t0 }
	ctx := context.Background()

	// Dirty: the last save failed.
	store.setSaveErr(errors.New("disk full"))
	_, _ = d.AddBreached(ctx, "dirty.com", "u@dirty.com", "leak", t0)
	store.setSaveErr(nil)

	// Busy: an operation holds the permit.
	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = d.Dispatch(ctx, "busy.com", func(context.Context, *Partition) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	if n := d.Passivate(t0.Add(time.Hour)); n != 0 {
		t.Fatalf("expected busy and dirty partitions to stay, got %d passivated", n)
	}
	close(release)
}

func TestPassivate_DisabledWithoutIdleTimeout(t *testing.T) {
	d, _, _ := newTestDirectory(time.Minute)
	if _, err := d.GetBreached(context.Background(), "a.com", "u@a.com", t0); err != nil {
		t.Fatal(err)
	}
	if n := d.Passivate(t0.Add(24 * time.Hour)); n != 0 {
		t.Errorf("expected passivation disabled, got %d", n)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	d := NewDirectory(newFakeSource(), newFakeStore(), Options{
		TTL:           time.Minute,
		IdleTimeout:   time.Millisecond,
		SweepInterval: time.Millisecond,
	})
	if _, err := d.GetBreached(context.Background(), "a.com", "u@a.com", t0); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for d.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected idle partition to be swept")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
}
