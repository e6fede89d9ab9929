package ratelimit

import "github.com/pkg/errors"

var (
	ErrInvalidConfig           = errors.New("invalid rate limit config")
	ErrUnsupportedAlgorithm    = errors.New("unsupported rate limiting algorithm")
	ErrUnsupportedIdentityType = errors.New("unsupported rate limit type")
)
