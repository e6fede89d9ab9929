package middleware

import (
	"time"

	"github.com/aman-churiwal/rate-limiter/internal/models"
	"github.com/aman-churiwal/rate-limiter/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

type DecisionSink interface {
	Record(entry *models.DecisionLog) bool
}

// DecisionRecorder journals the rate limit decision of every request that
// went through RateLimit. It must be registered before RateLimit so that it
// still runs for rejected requests.
func DecisionRecorder(sink DecisionSink, limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		value, exists := c.Get(ContextKeyDecision)
		if !exists {
			return
		}
		decision, ok := value.(Decision)
		if !ok {
			return
		}

		outcome := models.OutcomeAllowed
		if !decision.Result.Allowed {
			outcome = models.OutcomeDenied
		}

		sink.Record(&models.DecisionLog{
			Timestamp:    start.UTC(),
			RequestID:    c.GetString(ContextKeyRequestID),
			Key:          decision.Key,
			IdentityType: string(limiter.Type()),
			Algorithm:    string(limiter.Algorithm()),
			Outcome:      outcome,
			Limit:        decision.Info.Limit,
			Remaining:    decision.Result.Remaining,
			Method:       c.Request.Method,
			Path:         c.Request.URL.Path,
			IPAddress:    c.ClientIP(),
		})
	}
}
