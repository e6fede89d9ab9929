package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const slidingWindowSuffix = ":sliding_window"

// SlidingWindowLimiter keeps one sorted set entry per admitted request,
// scored by its arrival time in milliseconds.
//
// The prune, count and insert steps are separate store round trips. Two
// callers for the same key can both observe count < limit before either
// inserts, so under contention one extra request may be admitted. If hard
// limits are ever required, the three steps should move into a single Lua
// script (EVALSHA) doing check-and-insert atomically.
type SlidingWindowLimiter struct {
	store  Store
	limit  int
	window time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewSlidingWindowLimiter(store Store, limit int, window time.Duration, logger *zap.Logger) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

func (s *SlidingWindowLimiter) CheckRateLimit(ctx context.Context, key string) Result {
	setKey := key + slidingWindowSuffix
	now := s.now().UnixMilli()
	windowStart := now - s.window.Milliseconds()

	// Scores are non-negative epoch millis, so 0 is a safe lower bound.
	if _, err := s.store.RemoveFromSortedSet(ctx, setKey, 0, windowStart); err != nil {
		return s.failOpen(setKey, err)
	}

	count, err := s.store.GetSortedSetCount(ctx, setKey)
	if err != nil {
		return s.failOpen(setKey, err)
	}

	if count >= int64(s.limit) {
		// Denied requests are not recorded and do not consume budget.
		return Result{Allowed: false, Remaining: 0}
	}

	if err := s.store.AddToSortedSet(ctx, setKey, now, member(now), s.window); err != nil {
		return s.failOpen(setKey, err)
	}

	return Result{
		Allowed:   true,
		Remaining: max(0, s.limit-int(count)-1),
	}
}

func (s *SlidingWindowLimiter) failOpen(key string, err error) Result {
	s.logger.Warn("sliding window check failed, failing open", zap.String("key", key), zap.Error(err))
	return failOpen(s.limit)
}

func (s *SlidingWindowLimiter) Limit() int {
	return s.limit
}

func (s *SlidingWindowLimiter) Window() time.Duration {
	return s.window
}

// Two admissions in the same millisecond must stay distinct set members.
func member(nowMillis int64) string {
	return strconv.FormatInt(nowMillis, 10) + ":" + uuid.NewString()
}
