package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned without calling the protected function while
// the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type Config struct {
	MaxFailures       int           `mapstructure:"max_failures" json:"max_failures"`
	OpenTimeout       time.Duration `mapstructure:"open_timeout" json:"open_timeout"`
	HalfOpenSuccesses int           `mapstructure:"half_open_successes" json:"half_open_successes"`
}

func (c Config) withDefaults() Config {
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = 1
	}
	return c
}

// Breaker guards calls to a single dependency. After MaxFailures consecutive
// failures it opens and rejects calls for OpenTimeout, then lets probe calls
// through (half-open) until HalfOpenSuccesses of them succeed.
type Breaker struct {
	name   string
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           State
	failures        int
	successes       int
	openedAt        time.Time
	lastFailure     time.Time
	lastStateChange time.Time
	rejected        int64
}

func New(name string, cfg Config, logger *zap.Logger) *Breaker {
	return newBreaker(name, cfg, logger, time.Now)
}

func newBreaker(name string, cfg Config, logger *zap.Logger, now func() time.Time) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Breaker{
		name:            name,
		cfg:             cfg.withDefaults(),
		logger:          logger.With(zap.String("breaker", name)),
		now:             now,
		state:           StateClosed,
		lastStateChange: now(),
	}
}

// Execute runs fn unless the breaker is open. Context cancellation by the
// caller is not counted as a dependency failure.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)

	switch {
	case err == nil:
		b.onSuccess()
	case errors.Is(err, context.Canceled):
	default:
		b.onFailure()
	}
	return err
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.cfg.OpenTimeout {
		b.successes = 0
		b.setState(StateHalfOpen)
		return true
	}
	b.rejected++
	return false
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	if b.state == StateHalfOpen || b.failures >= b.cfg.MaxFailures {
		b.open()
	}
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccesses {
			b.failures = 0
			b.setState(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}
}

// Must be called with mu held.
func (b *Breaker) open() {
	b.openedAt = b.now()
	b.successes = 0
	b.setState(StateOpen)
}

// Must be called with mu held.
func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	prev := b.state
	b.state = s
	b.lastStateChange = b.now()

	fields := []zap.Field{zap.Stringer("from", prev), zap.Stringer("to", s), zap.Int("failures", b.failures)}
	if s == StateOpen {
		b.logger.Warn("circuit breaker opened", fields...)
		return
	}
	b.logger.Info("circuit breaker state changed", fields...)
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.successes = 0
	b.setState(StateClosed)
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Name:            b.name,
		State:           b.state,
		Failures:        b.failures,
		Rejected:        b.rejected,
		LastFailure:     b.lastFailure,
		LastStateChange: b.lastStateChange,
	}
}

type Snapshot struct {
	Name            string    `json:"name"`
	State           State     `json:"state"`
	Failures        int       `json:"failures"`
	Rejected        int64     `json:"rejected"`
	LastFailure     time.Time `json:"last_failure,omitempty"`
	LastStateChange time.Time `json:"last_state_change"`
}
