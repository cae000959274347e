package partition

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/BreachCache/internal/domain/breach"
)

var errBackend = errors.New("data source unavailable")

// fakeSource is an in-memory upstream.Source with failure injection.
type fakeSource struct {
	mu        sync.Mutex
	data      map[string]string
	fetches   int
	adds      int
	fetchErr  error
	addErr    error
	delay     time.Duration
	block     chan struct{} // when set, calls wait for it to close or ctx to end
	active    map[string]int
	maxActive map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		data:      make(map[string]string),
		active:    make(map[string]int),
		maxActive: make(map[string]int),
	}
}

func (f *fakeSource) enter(email string) (time.Duration, chan struct{}) {
	dom := email[strings.IndexByte(email, '@')+1:]
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[dom]++
	if f.active[dom] > f.maxActive[dom] {
		f.maxActive[dom] = f.active[dom]
	}
	return f.delay, f.block
}

func (f *fakeSource) leave(email string) {
	dom := email[strings.IndexByte(email, '@')+1:]
	f.mu.Lock()
	f.active[dom]--
	f.mu.Unlock()
}

func (f *fakeSource) wait(ctx context.Context, delay time.Duration, block chan struct{}) error {
	if delay > 0 {
		time.Sleep(delay)
	}
	if block == nil {
		return nil
	}
	select {
	case <-block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSource) Fetch(ctx context.Context, email string) (*string, error) {
	delay, block := f.enter(email)
	defer f.leave(email)
	if err := f.wait(ctx, delay, block); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if v, ok := f.data[email]; ok {
		return &v, nil
	}
	return nil, nil
}

func (f *fakeSource) Add(ctx context.Context, email, details string) error {
	delay, block := f.enter(email)
	defer f.leave(email)
	if err := f.wait(ctx, delay, block); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.adds++
	if f.addErr != nil {
		return f.addErr
	}
	f.data[email] = details
	return nil
}

func (f *fakeSource) setFetchErr(err error) {
	f.mu.Lock()
	f.fetchErr = err
	f.mu.Unlock()
}

func (f *fakeSource) setData(email, details string) {
	f.mu.Lock()
	f.data[email] = details
	f.mu.Unlock()
}

func (f *fakeSource) deleteData(email string) {
	f.mu.Lock()
	delete(f.data, email)
	f.mu.Unlock()
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeSource) addCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.adds
}

func (f *fakeSource) inFlight(dom string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active[dom]
}

func (f *fakeSource) maxConcurrent(dom string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive[dom]
}

// fakeStore is an in-memory statestore.Store with failure injection.
type fakeStore struct {
	mu      sync.Mutex
	states  map[string]breach.PartitionState
	loads   int
	saves   int
	loadErr error
	saveErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{states: make(map[string]breach.PartitionState)}
}

func (s *fakeStore) Load(_ context.Context, key string) (breach.PartitionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return breach.PartitionState{}, s.loadErr
	}
	if st, ok := s.states[key]; ok {
		return st.Clone(), nil
	}
	return breach.NewPartitionState(), nil
}

func (s *fakeStore) Save(_ context.Context, key string, state breach.PartitionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.states[key] = state.Clone()
	return nil
}

func (s *fakeStore) entry(key, email string) (breach.CacheEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.states[key].Entries[email]
	return e, ok
}

func (s *fakeStore) setLoadErr(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

func (s *fakeStore) setSaveErr(err error) {
	s.mu.Lock()
	s.saveErr = err
	s.mu.Unlock()
}

func (s *fakeStore) counts() (loads, saves int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads, s.saves
}

// pending returns the number of callers holding or waiting for key's permit.
func (d *Directory) pending(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.slots[key]; ok {
		return s.refs
	}
	return 0
}
