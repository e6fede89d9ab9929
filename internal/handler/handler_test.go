package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aman-churiwal/rate-limiter/internal/circuitbreaker"
	"github.com/aman-churiwal/rate-limiter/internal/healthcheck"
	"github.com/aman-churiwal/rate-limiter/internal/models"
	"github.com/aman-churiwal/rate-limiter/internal/ratelimit"
	"github.com/aman-churiwal/rate-limiter/internal/repository"
	"github.com/aman-churiwal/rate-limiter/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubHealth struct {
	status healthcheck.HealthStatus
}

func (s stubHealth) OverallHealth() healthcheck.HealthStatus { return s.status }

func (s stubHealth) GetAllStatus() map[string]healthcheck.Status {
	return map[string]healthcheck.Status{"redis": {Target: "redis", IsHealthy: s.status != healthcheck.Unhealthy, Critical: true}}
}

func newSystemHandler(t *testing.T, health HealthReporter) (*SystemHandler, *circuitbreaker.Breaker) {
	t.Helper()
	limiter, err := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), ratelimit.Config{
		Type:                ratelimit.IdentityIP,
		Algorithm:           ratelimit.AlgorithmSlidingWindow,
		MaxRequests:         3,
		WindowSizeInSeconds: 60,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	breaker := circuitbreaker.New("redis", circuitbreaker.Config{MaxFailures: 1}, zaptest.NewLogger(t))
	return NewSystemHandler(limiter, health, "redis", breaker), breaker
}

func serve(r *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestSystemHandler_Health(t *testing.T) {
	tests := []struct {
		name   string
		status healthcheck.HealthStatus
		code   int
	}{
		{name: "healthy", status: healthcheck.Healthy, code: http.StatusOK},
		{name: "degraded", status: healthcheck.Degraded, code: http.StatusOK},
		{name: "unhealthy", status: healthcheck.Unhealthy, code: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newSystemHandler(t, stubHealth{status: tt.status})
			r := gin.New()
			r.GET("/health", h.Health)

			w := serve(r, http.MethodGet, "/health")
			require.Equal(t, tt.code, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.status.String(), body["status"])
			assert.Contains(t, body["checks"], "redis")
		})
	}
}

func TestSystemHandler_HealthWithoutChecker(t *testing.T) {
	h, _ := newSystemHandler(t, nil)
	r := gin.New()
	r.GET("/health", h.Health)

	w := serve(r, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSystemHandler_Status(t *testing.T) {
	h, _ := newSystemHandler(t, stubHealth{status: healthcheck.Healthy})
	r := gin.New()
	r.GET("/admin/status", h.Status)

	w := serve(r, http.MethodGet, "/admin/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		RateLimit struct {
			Type          string `json:"type"`
			Algorithm     string `json:"algorithm"`
			MaxRequests   int    `json:"max_requests"`
			WindowSeconds int    `json:"window_seconds"`
		} `json:"rate_limit"`
		Storage         string                    `json:"storage"`
		Health          string                    `json:"health"`
		CircuitBreakers map[string]map[string]any `json:"circuit_breakers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, "ip", body.RateLimit.Type)
	assert.Equal(t, "sliding_window", body.RateLimit.Algorithm)
	assert.Equal(t, 3, body.RateLimit.MaxRequests)
	assert.Equal(t, 60, body.RateLimit.WindowSeconds)
	assert.Equal(t, "redis", body.Storage)
	assert.Equal(t, "healthy", body.Health)
	assert.Equal(t, "closed", body.CircuitBreakers["redis"]["state"])
}

func TestSystemHandler_ResetCircuitBreaker(t *testing.T) {
	h, breaker := newSystemHandler(t, nil)
	r := gin.New()
	r.POST("/admin/circuit-breakers/:name/reset", h.ResetCircuitBreaker)

	_ = breaker.Execute(context.Background(), func(context.Context) error { return assert.AnError })
	require.Equal(t, circuitbreaker.StateOpen, breaker.State())

	w := serve(r, http.MethodPost, "/admin/circuit-breakers/redis/reset")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, circuitbreaker.StateClosed, breaker.State())

	w = serve(r, http.MethodPost, "/admin/circuit-breakers/postgres/reset")
	require.Equal(t, http.StatusNotFound, w.Code)
}

type stubDecisionReader struct {
	counts  map[models.Outcome]int64
	from    time.Time
	to      time.Time
	topN    int
	limit   int
	offset  int
	outcome models.Outcome
	findErr error
}

func (s *stubDecisionReader) CountByOutcome(_ context.Context, from, to time.Time) (map[models.Outcome]int64, error) {
	s.from, s.to = from, to
	return s.counts, nil
}

func (s *stubDecisionReader) TopDeniedKeys(_ context.Context, _, _ time.Time, limit int) ([]repository.KeyCount, error) {
	s.topN = limit
	return []repository.KeyCount{{Key: "ip:10.0.0.1", Count: 4}}, nil
}

func (s *stubDecisionReader) HourlyOutcomes(context.Context, time.Time, time.Time) ([]repository.HourlyOutcome, error) {
	return []repository.HourlyOutcome{}, nil
}

func (s *stubDecisionReader) FindByTimeRange(_ context.Context, _, _ time.Time, outcome models.Outcome, limit, offset int) ([]models.DecisionLog, error) {
	s.outcome, s.limit, s.offset = outcome, limit, offset
	if s.findErr != nil {
		return nil, s.findErr
	}
	return []models.DecisionLog{}, nil
}

func (s *stubDecisionReader) DeleteOldLogs(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func newAnalyticsRouter(reader *stubDecisionReader) *gin.Engine {
	h := NewAnalyticsHandler(service.NewAnalyticsService(reader))
	r := gin.New()
	r.GET("/admin/decisions", h.GetDecisions)
	r.GET("/admin/decisions/summary", h.GetSummary)
	r.GET("/admin/decisions/timeseries", h.GetTimeSeries)
	return r
}

func TestAnalyticsHandler_GetSummary(t *testing.T) {
	reader := &stubDecisionReader{counts: map[models.Outcome]int64{models.OutcomeAllowed: 6, models.OutcomeDenied: 4}}
	r := newAnalyticsRouter(reader)

	w := serve(r, http.MethodGet, "/admin/decisions/summary?from=2024-03-01T00:00:00Z&to=1709337600&top=5")
	require.Equal(t, http.StatusOK, w.Code)

	var summary service.DecisionSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.EqualValues(t, 10, summary.Total)
	assert.InDelta(t, 40.0, summary.DenialRate, 0.001)
	assert.Equal(t, 5, reader.topN)
	assert.True(t, reader.from.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, reader.to.Equal(time.Unix(1709337600, 0)))
}

func TestAnalyticsHandler_RejectsBadTimeRange(t *testing.T) {
	r := newAnalyticsRouter(&stubDecisionReader{})

	for _, target := range []string{
		"/admin/decisions/summary?from=yesterday",
		"/admin/decisions/summary?from=2000&to=1000",
		"/admin/decisions/timeseries?to=soon",
	} {
		w := serve(r, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestAnalyticsHandler_GetDecisionsPagination(t *testing.T) {
	reader := &stubDecisionReader{}
	r := newAnalyticsRouter(reader)

	w := serve(r, http.MethodGet, "/admin/decisions?limit=5000&offset=20&outcome=denied")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, defaultPageSize, reader.limit)
	assert.Equal(t, 20, reader.offset)
	assert.Equal(t, models.OutcomeDenied, reader.outcome)

	w = serve(r, http.MethodGet, "/admin/decisions?outcome=maybe")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyticsHandler_GetDecisionsRepositoryFailureIs500(t *testing.T) {
	r := newAnalyticsRouter(&stubDecisionReader{findErr: errors.New("connection refused")})

	w := serve(r, http.MethodGet, "/admin/decisions?outcome=allowed")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
