package ratelimit

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewAlgorithm builds the window strategy named by cfg.Algorithm.
// Unknown or unimplemented variants are construction errors.
func NewAlgorithm(store Store, cfg Config, logger *zap.Logger) (Algorithm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.WithMessage(ErrInvalidConfig, "store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Algorithm {
	case AlgorithmFixedWindow:
		return NewFixedWindow(store, cfg.MaxRequests, cfg.Window(), logger), nil
	case AlgorithmSlidingWindow:
		return NewSlidingWindowLimiter(store, cfg.MaxRequests, cfg.Window(), logger), nil
	case AlgorithmTokenBucket:
		return nil, errors.WithMessage(ErrUnsupportedAlgorithm, "token bucket is not implemented")
	default:
		return nil, errors.WithMessagef(ErrUnsupportedAlgorithm, "%q", cfg.Algorithm)
	}
}
