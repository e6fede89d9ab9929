package healthcheck

import "time"

type Status struct {
	Target       string        `json:"target"`
	IsHealthy    bool          `json:"healthy"`
	Critical     bool          `json:"critical"`
	LastCheck    time.Time     `json:"last_check"`
	LastSuccess  time.Time     `json:"last_success,omitempty"`
	LastFailure  time.Time     `json:"last_failure,omitempty"`
	FailureCount int           `json:"failure_count"`
	Latency      time.Duration `json:"latency_ns"`
	LastError    string        `json:"last_error,omitempty"`
}

// Represents overall health of the limiter's dependencies
type HealthStatus int

const (
	Healthy HealthStatus = iota
	Degraded
	Unhealthy
)

func (h HealthStatus) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

func (h HealthStatus) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}
