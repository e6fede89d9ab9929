package healthcheck

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

type Config struct {
	Interval    time.Duration `mapstructure:"interval" json:"interval"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxFailures int           `mapstructure:"max_failures" json:"max_failures"`
}

// Checker probes the limiter's dependencies in the background and caches
// their status, so the health endpoint never waits on the network.
type Checker struct {
	mu          sync.RWMutex
	probes      map[string]Probe
	critical    map[string]bool
	status      map[string]*Status
	interval    time.Duration
	timeout     time.Duration
	maxFailures int
	logger      *zap.Logger
	now         func() time.Time
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewChecker(cfg Config, logger *zap.Logger) *Checker {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Checker{
		probes:      make(map[string]Probe),
		critical:    make(map[string]bool),
		status:      make(map[string]*Status),
		interval:    cfg.Interval,
		timeout:     cfg.Timeout,
		maxFailures: cfg.MaxFailures,
		logger:      logger.Named("healthcheck"),
		now:         time.Now,
	}
}

// Register adds a probe. When a critical probe is unhealthy the overall
// status is unhealthy; otherwise it only degrades it. Must be called
// before Start.
func (c *Checker) Register(name string, critical bool, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.probes[name] = probe
	c.critical[name] = critical
	c.status[name] = &Status{
		Target:    name,
		IsHealthy: true, // Assume healthy until proven otherwise
		Critical:  critical,
	}
}

// Runs one round synchronously, then keeps probing every interval
// until Stop or ctx is done.
func (c *Checker) Start(ctx context.Context) {
	c.mu.Lock()
	if c.done != nil {
		c.mu.Unlock()
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.logger.Info("starting health checks", zap.Int("probes", len(c.probes)), zap.Duration("interval", c.interval))
	c.CheckAll(ctx)

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.CheckAll(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Checker) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.logger.Info("health checker stopped")
}

// Probes every dependency concurrently
func (c *Checker) CheckAll(ctx context.Context) {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, p := range c.probes {
		probes[name] = p
	}
	c.mu.RUnlock()

	var wg sync.WaitGroup
	for name, probe := range probes {
		name, probe := name, probe
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.check(ctx, name, probe)
		}()
	}
	wg.Wait()
}

func (c *Checker) check(ctx context.Context, name string, probe Probe) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := c.now()
	err := probe(ctx)
	latency := c.now().Sub(start)

	if err != nil {
		c.recordFailure(name, err)
		return
	}
	c.recordSuccess(name, latency)
}

func (c *Checker) recordSuccess(name string, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	status := c.status[name]
	status.LastCheck = now
	status.LastSuccess = now
	status.Latency = latency
	status.FailureCount = 0
	status.LastError = ""

	if !status.IsHealthy {
		c.logger.Info("dependency is healthy again", zap.String("dependency", name))
		status.IsHealthy = true
	}
}

func (c *Checker) recordFailure(name string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	status := c.status[name]
	status.LastCheck = now
	status.LastFailure = now
	status.FailureCount++
	status.LastError = err.Error()

	if status.IsHealthy && status.FailureCount >= c.maxFailures {
		c.logger.Warn("dependency is unhealthy",
			zap.String("dependency", name),
			zap.Int("failures", status.FailureCount),
			zap.Error(err),
		)
		status.IsHealthy = false
	}
}

// Returns a copy of the status of every dependency
func (c *Checker) GetAllStatus() map[string]Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Status, len(c.status))
	for name, s := range c.status {
		out[name] = *s
	}
	return out
}

func (c *Checker) OverallHealth() HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	overall := Healthy
	for name, s := range c.status {
		if s.IsHealthy {
			continue
		}
		if c.critical[name] {
			return Unhealthy
		}
		overall = Degraded
	}
	return overall
}
