package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/aman-churiwal/rate-limiter/internal/circuitbreaker"
	"github.com/aman-churiwal/rate-limiter/internal/ratelimit"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitStore implements ratelimit.Store on Redis. Multi-command
// primitives run in MULTI/EXEC so each one is atomic on the server.
//
// Every failure is logged here and returned with a zero value; callers
// decide what a failure means for the request.
type RateLimitStore struct {
	client  redis.UniversalClient
	breaker *circuitbreaker.Breaker
	timeout time.Duration
	logger  *zap.Logger
}

var _ ratelimit.Store = (*RateLimitStore)(nil)

type RateLimitStoreOption func(*RateLimitStore)

// Every command runs through b. Calls fail fast with
// circuitbreaker.ErrCircuitOpen while it is open.
func WithBreaker(b *circuitbreaker.Breaker) RateLimitStoreOption {
	return func(s *RateLimitStore) {
		s.breaker = b
	}
}

// Bounds each primitive. Zero means only the caller's context applies.
func WithOperationTimeout(d time.Duration) RateLimitStoreOption {
	return func(s *RateLimitStore) {
		s.timeout = d
	}
}

func NewRateLimitStore(r *Redis, logger *zap.Logger, opts ...RateLimitStoreOption) *RateLimitStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RateLimitStore{
		client: r.Client,
		logger: logger.Named("ratelimit_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// INCR plus EXPIRE NX. The expiry is armed on creation only, so later
// increments never push the window end out. Requires Redis >= 7.0.
func (s *RateLimitStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	err := s.do(ctx, "increment", key, func(ctx context.Context) error {
		pipe := s.client.TxPipeline()
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, ttl)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *RateLimitStore) RemoveFromSortedSet(ctx context.Context, key string, minScore, maxScore int64) (int64, error) {
	var removed int64
	err := s.do(ctx, "remove_from_sorted_set", key, func(ctx context.Context) error {
		var err error
		removed, err = s.client.ZRemRangeByScore(ctx, key, formatScore(minScore), formatScore(maxScore)).Result()
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *RateLimitStore) GetSortedSetCount(ctx context.Context, key string) (int64, error) {
	var count int64
	err := s.do(ctx, "get_sorted_set_count", key, func(ctx context.Context) error {
		var err error
		count, err = s.client.ZCard(ctx, key).Result()
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ZADD plus EXPIRE. Unlike Increment the expiry is re-armed on every
// insert, so an active set lives one window past its newest entry.
func (s *RateLimitStore) AddToSortedSet(ctx context.Context, key string, score int64, member string, ttl time.Duration) error {
	return s.do(ctx, "add_to_sorted_set", key, func(ctx context.Context) error {
		pipe := s.client.TxPipeline()
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: member})
		pipe.Expire(ctx, key, ttl)
		_, err := pipe.Exec(ctx)
		return err
	})
}

func (s *RateLimitStore) do(ctx context.Context, op, key string, fn func(context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(ctx, fn)
	} else {
		err = fn(ctx)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		s.logger.Debug("redis call skipped, circuit open", zap.String("op", op), zap.String("key", key))
	} else {
		s.logger.Error("redis call failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
	}
	return errors.WithMessage(err, op)
}

func formatScore(score int64) string {
	return strconv.FormatInt(score, 10)
}
