package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// FixedWindowLimiter counts requests in wall-clock windows using a single
// atomic increment per request. The counter expiry is only armed when the
// counter is created, so the window boundary never slides.
type FixedWindowLimiter struct {
	store  Store
	limit  int
	window time.Duration
	logger *zap.Logger
}

func NewFixedWindow(store Store, limit int, window time.Duration, logger *zap.Logger) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger,
	}
}

// Requests straddling a window edge can see up to 2x limit admitted in a
// short span. That is inherent to fixed windows.
func (f *FixedWindowLimiter) CheckRateLimit(ctx context.Context, key string) Result {
	count, err := f.store.Increment(ctx, key, f.window)
	if err != nil {
		f.logger.Warn("fixed window check failed, failing open", zap.String("key", key), zap.Error(err))
		return failOpen(f.limit)
	}

	// A live counter is at least 1 after INCR; zero means the store degraded.
	if count <= 0 {
		f.logger.Warn("fixed window got degraded count, failing open", zap.String("key", key), zap.Int64("count", count))
		return failOpen(f.limit)
	}

	return Result{
		Allowed:   count <= int64(f.limit),
		Remaining: max(0, f.limit-int(count)),
	}
}

func (f *FixedWindowLimiter) Limit() int {
	return f.limit
}

func (f *FixedWindowLimiter) Window() time.Duration {
	return f.window
}
