package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aman-churiwal/rate-limiter/internal/models"
	"github.com/aman-churiwal/rate-limiter/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

const (
	defaultTopN     = 10
	defaultPageSize = 100
	maxPageSize     = 1000
)

type AnalyticsHandler struct {
	service *service.AnalyticsService
}

func NewAnalyticsHandler(service *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// Handles GET /admin/decisions/summary
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	topN := queryInt(c, "top", defaultTopN, 1, 100)

	summary, err := h.service.GetSummary(c.Request.Context(), from, to, topN)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Handles GET /admin/decisions/timeseries
func (h *AnalyticsHandler) GetTimeSeries(c *gin.Context) {
	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	series, err := h.service.GetTimeSeries(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, series)
}

// Handles GET /admin/decisions
func (h *AnalyticsHandler) GetDecisions(c *gin.Context) {
	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := queryInt(c, "limit", defaultPageSize, 1, maxPageSize)
	offset := queryInt(c, "offset", 0, 0, -1)
	outcome := models.Outcome(c.Query("outcome"))

	decisions, err := h.service.GetDecisions(c.Request.Context(), from, to, outcome, limit, offset)
	if errors.Is(err, service.ErrUnknownOutcome) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"decisions": decisions,
		"limit":     limit,
		"offset":    offset,
	})
}

// Parses 'from' and 'to' as RFC3339 or unix seconds. Defaults to the last 24 hours.
func parseTimeRange(c *gin.Context) (time.Time, time.Time, error) {
	to := time.Now()
	from := to.Add(-24 * time.Hour)

	if fromStr := c.Query("from"); fromStr != "" {
		parsed, err := parseTime(fromStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.WithMessage(err, "invalid 'from'")
		}
		from = parsed
	}

	if toStr := c.Query("to"); toStr != "" {
		parsed, err := parseTime(toStr)
		if err != nil {
			return time.Time{}, time.Time{}, errors.WithMessage(err, "invalid 'to'")
		}
		to = parsed
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, errors.New("'from' must not be after 'to'")
	}

	return from, to, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, errors.Errorf("%q is neither RFC3339 nor a unix timestamp", s)
	}
	return time.Unix(ts, 0), nil
}

// Out of range or malformed values fall back to def. hi < 0 means unbounded.
func queryInt(c *gin.Context, name string, def, lo, hi int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || (hi >= 0 && v > hi) {
		return def
	}
	return v
}
