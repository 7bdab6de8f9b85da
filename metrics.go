package auth

// Outcome labels reported to a MetricsRecorder.
const (
	OutcomeSuccess      = "success"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
	OutcomeExpired      = "expired"
	OutcomeNotFound     = "not_found"
	OutcomeConflict     = "conflict"
)

// MetricsRecorder receives counters from the auth components. The metrics
// package provides a Prometheus implementation.
type MetricsRecorder interface {
	SessionIssued(evicted int)
	SessionsRevoked()
	Authentication(outcome string)
	Lifecycle(kind TokenKind, action, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) SessionIssued(int)                   {}
func (noopMetrics) SessionsRevoked()                    {}
func (noopMetrics) Authentication(string)               {}
func (noopMetrics) Lifecycle(TokenKind, string, string) {}

func normalizeMetrics(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
