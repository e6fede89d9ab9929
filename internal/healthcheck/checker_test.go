package healthcheck

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type switchableProbe struct {
	failing atomic.Bool
	calls   atomic.Int32
}

func (p *switchableProbe) Probe(context.Context) error {
	p.calls.Add(1)
	if p.failing.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func TestChecker_MarksUnhealthyAfterMaxFailures(t *testing.T) {
	redis := &switchableProbe{}
	c := NewChecker(Config{MaxFailures: 2}, zaptest.NewLogger(t))
	c.Register("redis", true, redis.Probe)
	ctx := context.Background()

	redis.failing.Store(true)
	c.CheckAll(ctx)
	require.Equal(t, Healthy, c.OverallHealth())

	c.CheckAll(ctx)
	require.Equal(t, Unhealthy, c.OverallHealth())

	status := c.GetAllStatus()["redis"]
	assert.False(t, status.IsHealthy)
	assert.Equal(t, 2, status.FailureCount)
	assert.Equal(t, "connection refused", status.LastError)

	redis.failing.Store(false)
	c.CheckAll(ctx)
	require.Equal(t, Healthy, c.OverallHealth())
	assert.Zero(t, c.GetAllStatus()["redis"].FailureCount)
}

func TestChecker_NonCriticalFailureDegrades(t *testing.T) {
	redis := &switchableProbe{}
	postgres := &switchableProbe{}
	postgres.failing.Store(true)

	c := NewChecker(Config{MaxFailures: 1}, zaptest.NewLogger(t))
	c.Register("redis", true, redis.Probe)
	c.Register("postgres", false, postgres.Probe)

	c.CheckAll(context.Background())

	assert.Equal(t, Degraded, c.OverallHealth())
	assert.True(t, c.GetAllStatus()["redis"].IsHealthy)
}

func TestChecker_ProbesAreBoundedByTimeout(t *testing.T) {
	c := NewChecker(Config{Timeout: 20 * time.Millisecond, MaxFailures: 1}, zaptest.NewLogger(t))
	c.Register("slow", true, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	c.CheckAll(context.Background())

	assert.Equal(t, Unhealthy, c.OverallHealth())
	assert.Contains(t, c.GetAllStatus()["slow"].LastError, "deadline exceeded")
}

func TestChecker_StartRunsImmediatelyAndPeriodically(t *testing.T) {
	probe := &switchableProbe{}
	c := NewChecker(Config{Interval: 10 * time.Millisecond}, zaptest.NewLogger(t))
	c.Register("redis", true, probe.Probe)

	c.Start(context.Background())
	require.GreaterOrEqual(t, probe.calls.Load(), int32(1))

	require.Eventually(t, func() bool { return probe.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	c.Stop()
	calls := probe.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, probe.calls.Load())
}

func TestHealthStatus_String(t *testing.T) {
	assert.Equal(t, "healthy", Healthy.String())
	assert.Equal(t, "degraded", Degraded.String())
	assert.Equal(t, "unhealthy", Unhealthy.String())
	assert.Equal(t, "unknown", HealthStatus(42).String())
}
