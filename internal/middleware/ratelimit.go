package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/aman-churiwal/rate-limiter/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"

	// Context key holding the Decision for the current request.
	ContextKeyDecision = "ratelimit_decision"

	// Bodies larger than this are not inspected for a clientId.
	MaxClientIDBodyBytes = 64 << 10
)

// Decision is what the rate limiter decided for one request.
type Decision struct {
	Key    string
	Result ratelimit.Result
	Info   ratelimit.Info
}

type clientIDPayload struct {
	ClientID string `json:"clientId"`
}

// RateLimit admits or rejects each request against limiter. Store outages
// never reject a request; the limiter fails open.
func RateLimit(limiter *ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		identity := extractIdentity(c, limiter.Type())
		key := limiter.Key(identity)

		result := limiter.Check(c.Request.Context(), identity)
		info := limiter.Info(result)

		c.Set(ContextKeyDecision, Decision{Key: key, Result: result, Info: info})
		c.Header(HeaderRateLimitLimit, strconv.Itoa(info.Limit))
		c.Header(HeaderRateLimitRemaining, strconv.Itoa(info.Remaining))

		if !result.Allowed {
			logger.Debug("request rate limited",
				zap.String("key", key),
				zap.String("request_id", c.GetString(ContextKeyRequestID)),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests, please try again later",
			})
			return
		}

		c.Next()
	}
}

// Missing identities are left empty; the limiter buckets them as "unknown".
func extractIdentity(c *gin.Context, identityType ratelimit.IdentityType) string {
	switch identityType {
	case ratelimit.IdentityClientID:
		return clientIDFromBody(c)
	default:
		return c.ClientIP()
	}
}

type replayBody struct {
	io.Reader
	io.Closer
}

// Reads clientId from a JSON body and puts the body back for the handler.
// At most MaxClientIDBodyBytes are buffered; a larger body counts as having
// no clientId and is streamed to the handler unread.
func clientIDFromBody(c *gin.Context) string {
	original := c.Request.Body
	if original == nil || original == http.NoBody {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(original, MaxClientIDBodyBytes+1))
	c.Request.Body = replayBody{
		Reader: io.MultiReader(bytes.NewReader(body), original),
		Closer: original,
	}
	if err != nil || len(body) == 0 || len(body) > MaxClientIDBodyBytes {
		return ""
	}

	var payload clientIDPayload
	if err := binding.JSON.BindBody(body, &payload); err != nil {
		return ""
	}
	return payload.ClientID
}
