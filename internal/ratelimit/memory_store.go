package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. It gives the same
// per-operation atomicity as the Redis store but only within one process,
// so it suits single-instance deployments and tests.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	sets     map[string]*memorySet
	now      func() time.Time
}

type memoryCounter struct {
	value     int64
	expiresAt time.Time
}

type memorySet struct {
	members   map[string]int64
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*memoryCounter),
		sets:     make(map[string]*memorySet),
		now:      now,
	}
}

func (m *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.counters[key]
	if !ok || expired(c.expiresAt, now) {
		c = &memoryCounter{}
		m.counters[key] = c
	}

	c.value++
	if c.expiresAt.IsZero() && ttl > 0 {
		c.expiresAt = now.Add(ttl)
	}

	return c.value, nil
}

func (m *MemoryStore) RemoveFromSortedSet(_ context.Context, key string, minScore, maxScore int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.liveSet(key)
	if set == nil {
		return 0, nil
	}

	var removed int64
	for member, score := range set.members {
		if score >= minScore && score <= maxScore {
			delete(set.members, member)
			removed++
		}
	}
	if len(set.members) == 0 {
		delete(m.sets, key)
	}

	return removed, nil
}

func (m *MemoryStore) GetSortedSetCount(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.liveSet(key)
	if set == nil {
		return 0, nil
	}
	return int64(len(set.members)), nil
}

func (m *MemoryStore) AddToSortedSet(_ context.Context, key string, score int64, member string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.liveSet(key)
	if set == nil {
		set = &memorySet{members: make(map[string]int64)}
		m.sets[key] = set
	}

	set.members[member] = score
	set.expiresAt = time.Time{}
	if ttl > 0 {
		set.expiresAt = m.now().Add(ttl)
	}

	return nil
}

// Must be called with mu held.
func (m *MemoryStore) liveSet(key string) *memorySet {
	set, ok := m.sets[key]
	if !ok {
		return nil
	}
	if expired(set.expiresAt, m.now()) {
		delete(m.sets, key)
		return nil
	}
	return set
}

// Sweep drops every expired counter and sorted set and returns how many
// keys it removed. Keys are otherwise only evicted when touched again.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	evicted := 0
	for key, c := range m.counters {
		if expired(c.expiresAt, now) {
			delete(m.counters, key)
			evicted++
		}
	}
	for key, set := range m.sets {
		if expired(set.expiresAt, now) {
			delete(m.sets, key)
			evicted++
		}
	}
	return evicted
}

// Run sweeps expired keys every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Len returns the number of live and not yet swept keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counters) + len(m.sets)
}

func expired(expiresAt, now time.Time) bool {
	return !expiresAt.IsZero() && !now.Before(expiresAt)
}
