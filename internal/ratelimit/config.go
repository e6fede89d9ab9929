package ratelimit

import (
	"time"

	"github.com/pkg/errors"
)

type IdentityType string

const (
	IdentityIP       IdentityType = "ip"
	IdentityClientID IdentityType = "client_id"
)

type AlgorithmType string

const (
	AlgorithmFixedWindow   AlgorithmType = "fixed_window"
	AlgorithmSlidingWindow AlgorithmType = "sliding_window"

	// Accepted by the config schema, rejected at construction.
	AlgorithmTokenBucket AlgorithmType = "token_bucket"
)

type Config struct {
	Type                IdentityType       `mapstructure:"type" json:"type"`
	Algorithm           AlgorithmType      `mapstructure:"algorithm" json:"algorithm"`
	MaxRequests         int                `mapstructure:"max_requests" json:"max_requests"`
	WindowSizeInSeconds int                `mapstructure:"window_size_in_seconds" json:"window_size_in_seconds"`
	KeyPrefix           string             `mapstructure:"key_prefix" json:"key_prefix,omitempty"`
	TokenBucket         *TokenBucketConfig `mapstructure:"token_bucket" json:"token_bucket,omitempty"`
}

type TokenBucketConfig struct {
	RefillRate int `mapstructure:"refill_rate" json:"refill_rate"`
	Capacity   int `mapstructure:"capacity" json:"capacity"`
}

func (c Config) Validate() error {
	if c.MaxRequests <= 0 {
		return errors.WithMessagef(ErrInvalidConfig, "max_requests must be > 0, got %d", c.MaxRequests)
	}
	if c.WindowSizeInSeconds <= 0 {
		return errors.WithMessagef(ErrInvalidConfig, "window_size_in_seconds must be > 0, got %d", c.WindowSizeInSeconds)
	}
	return nil
}

func (c Config) Window() time.Duration {
	return time.Duration(c.WindowSizeInSeconds) * time.Second
}
