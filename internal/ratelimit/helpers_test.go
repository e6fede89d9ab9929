package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errStoreDown = errors.New("connection refused")

// failingStore fails every primitive.
type failingStore struct {
	calls int
}

func (s *failingStore) Increment(context.Context, string, time.Duration) (int64, error) {
	s.calls++
	return 0, errStoreDown
}

func (s *failingStore) RemoveFromSortedSet(context.Context, string, int64, int64) (int64, error) {
	s.calls++
	return 0, errStoreDown
}

func (s *failingStore) GetSortedSetCount(context.Context, string) (int64, error) {
	s.calls++
	return 0, errStoreDown
}

func (s *failingStore) AddToSortedSet(context.Context, string, int64, string, time.Duration) error {
	s.calls++
	return errStoreDown
}

// degradedStore swallows failures and reports zero values, like a store
// that absorbed an outage without surfacing the error.
type degradedStore struct{}

func (degradedStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, nil
}

func (degradedStore) RemoveFromSortedSet(context.Context, string, int64, int64) (int64, error) {
	return 0, nil
}

func (degradedStore) GetSortedSetCount(context.Context, string) (int64, error) {
	return 0, nil
}

func (degradedStore) AddToSortedSet(context.Context, string, int64, string, time.Duration) error {
	return nil
}

// barrierStore holds every caller after it has counted until all expected
// callers have counted, forcing the count-then-insert interleaving.
type barrierStore struct {
	*MemoryStore
	counted sync.WaitGroup
}

func newBarrierStore(callers int) *barrierStore {
	s := &barrierStore{MemoryStore: NewMemoryStore()}
	s.counted.Add(callers)
	return s
}

func (s *barrierStore) GetSortedSetCount(ctx context.Context, key string) (int64, error) {
	count, err := s.MemoryStore.GetSortedSetCount(ctx, key)
	s.counted.Done()
	s.counted.Wait()
	return count, err
}
