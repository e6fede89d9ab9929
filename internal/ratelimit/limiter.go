package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const unknownIdentity = "unknown"

// Limiter binds one algorithm to one identity policy. It is safe for
// concurrent use; all window state lives in the store.
type Limiter struct {
	config    Config
	algorithm Algorithm
}

func NewLimiter(store Store, cfg Config, logger *zap.Logger) (*Limiter, error) {
	switch cfg.Type {
	case IdentityIP, IdentityClientID:
	default:
		return nil, errors.WithMessagef(ErrUnsupportedIdentityType, "%q", cfg.Type)
	}

	algorithm, err := NewAlgorithm(store, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Limiter{config: cfg, algorithm: algorithm}, nil
}

// Key builds <identityType>[:<prefix>]:<identity>.
func (l *Limiter) Key(identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		identity = unknownIdentity
	}

	var sb strings.Builder
	sb.WriteString(string(l.config.Type))
	if l.config.KeyPrefix != "" {
		sb.WriteString(":")
		sb.WriteString(l.config.KeyPrefix)
	}
	sb.WriteString(":")
	sb.WriteString(identity)
	return sb.String()
}

func (l *Limiter) Check(ctx context.Context, identity string) Result {
	return l.algorithm.CheckRateLimit(ctx, l.Key(identity))
}

func (l *Limiter) Info(result Result) Info {
	return Info{Limit: l.algorithm.Limit(), Remaining: result.Remaining}
}

func (l *Limiter) Type() IdentityType {
	return l.config.Type
}

func (l *Limiter) Algorithm() AlgorithmType {
	return l.config.Algorithm
}

func (l *Limiter) Limit() int {
	return l.algorithm.Limit()
}

func (l *Limiter) Window() time.Duration {
	return l.algorithm.Window()
}
