package ratelimit

import (
	"context"
	"time"
)

// Store is the narrow contract the window algorithms are built on. Every
// operation must be atomic on the backing service; implementations report
// their own failures and return a zero value alongside the error.
type Store interface {
	// Increments the counter at key and returns the post-increment value.
	// The expiry is set to ttl only if the key has none yet.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Deletes all sorted set entries scored in [minScore, maxScore].
	RemoveFromSortedSet(ctx context.Context, key string, minScore, maxScore int64) (int64, error)

	// Returns the cardinality of the sorted set at key.
	GetSortedSetCount(ctx context.Context, key string) (int64, error)

	// Inserts member with score and (re)sets the key expiry to ttl.
	AddToSortedSet(ctx context.Context, key string, score int64, member string, ttl time.Duration) error
}

// Algorithm decides whether the request identified by key is admitted.
// It never returns an error: store failures resolve to a fail-open result.
type Algorithm interface {
	CheckRateLimit(ctx context.Context, key string) Result

	Limit() int

	Window() time.Duration
}

type Result struct {
	Allowed   bool
	Remaining int
}

// Info is what gets reported back to the client in response headers.
type Info struct {
	Limit     int
	Remaining int
}

func failOpen(limit int) Result {
	return Result{Allowed: true, Remaining: max(0, limit-1)}
}
