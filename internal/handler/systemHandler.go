package handler

import (
	"net/http"
	"time"

	"github.com/aman-churiwal/rate-limiter/internal/circuitbreaker"
	"github.com/aman-churiwal/rate-limiter/internal/healthcheck"
	"github.com/aman-churiwal/rate-limiter/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

type HealthReporter interface {
	OverallHealth() healthcheck.HealthStatus
	GetAllStatus() map[string]healthcheck.Status
}

// Handles health, status and circuit breaker endpoints
type SystemHandler struct {
	limiter     *ratelimit.Limiter
	health      HealthReporter
	breakers    map[string]*circuitbreaker.Breaker
	storageType string
	startTime   time.Time
}

func NewSystemHandler(limiter *ratelimit.Limiter, health HealthReporter, storageType string, breakers ...*circuitbreaker.Breaker) *SystemHandler {
	byName := make(map[string]*circuitbreaker.Breaker, len(breakers))
	for _, b := range breakers {
		byName[b.Name()] = b
	}

	return &SystemHandler{
		limiter:     limiter,
		health:      health,
		breakers:    byName,
		storageType: storageType,
		startTime:   time.Now(),
	}
}

// Handles GET|POST /api/ping
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Handles GET /health. Degraded still answers 200 because the limiter keeps
// serving (fail open) while a dependency is down.
func (h *SystemHandler) Health(c *gin.Context) {
	status := healthcheck.Healthy
	checks := map[string]healthcheck.Status{}
	if h.health != nil {
		status = h.health.OverallHealth()
		checks = h.health.GetAllStatus()
	}

	code := http.StatusOK
	if status == healthcheck.Unhealthy {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status.String(),
		"service":   "rate-limiter",
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	})
}

// Handles GET /admin/status
func (h *SystemHandler) Status(c *gin.Context) {
	health := healthcheck.Healthy
	if h.health != nil {
		health = h.health.OverallHealth()
	}

	c.JSON(http.StatusOK, gin.H{
		"rate_limit": gin.H{
			"type":           h.limiter.Type(),
			"algorithm":      h.limiter.Algorithm(),
			"max_requests":   h.limiter.Limit(),
			"window_seconds": int(h.limiter.Window().Seconds()),
		},
		"storage":          h.storageType,
		"health":           health.String(),
		"circuit_breakers": h.snapshots(),
		"uptime":           time.Since(h.startTime).Seconds(),
		"timestamp":        time.Now().Unix(),
	})
}

// Handles GET /admin/circuit-breakers
func (h *SystemHandler) CircuitBreakerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.snapshots())
}

// Handles POST /admin/circuit-breakers/:name/reset
func (h *SystemHandler) ResetCircuitBreaker(c *gin.Context) {
	name := c.Param("name")

	breaker, exists := h.breakers[name]
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Circuit breaker not found",
		})
		return
	}

	breaker.Reset()

	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breaker reset successfully",
		"name":    name,
	})
}

func (h *SystemHandler) snapshots() map[string]circuitbreaker.Snapshot {
	out := make(map[string]circuitbreaker.Snapshot, len(h.breakers))
	for name, b := range h.breakers {
		out[name] = b.Snapshot()
	}
	return out
}
