package circuitbreaker

type State int

const (
	// Calls pass through.
	StateClosed State = iota

	// Calls are rejected with ErrCircuitOpen.
	StateOpen

	// Probe calls pass through; one failure reopens.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
