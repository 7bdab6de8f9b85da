// Package metrics exposes auth counters to Prometheus.
package metrics

import (
	"net/http"

	auth "github.com/goliatone/go-jwt-auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements auth.MetricsRecorder
type Collector struct {
	sessionsIssued  prometheus.Counter
	sessionsEvicted prometheus.Counter
	sessionsRevoked prometheus.Counter
	authentications *prometheus.CounterVec
	lifecycle       *prometheus.CounterVec
}

var _ auth.MetricsRecorder = (*Collector)(nil)

// NewCollector registers the auth metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_sessions_issued_total",
			Help: "Session tokens issued.",
		}),
		sessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_sessions_evicted_total",
			Help: "Session tokens dropped to respect the simultaneous session limit.",
		}),
		sessionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_sessions_revoked_total",
			Help: "Revoke all calls.",
		}),
		authentications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_authentications_total",
			Help: "Bearer token authentications by outcome.",
		}, []string{"outcome"}),
		lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_lifecycle_tokens_total",
			Help: "Lifecycle token operations by kind, action and outcome.",
		}, []string{"kind", "action", "outcome"}),
	}

	reg.MustRegister(
		c.sessionsIssued,
		c.sessionsEvicted,
		c.sessionsRevoked,
		c.authentications,
		c.lifecycle,
	)

	return c
}

// SessionIssued records a new session and how many old ones were evicted
func (c *Collector) SessionIssued(evicted int) {
	c.sessionsIssued.Inc()
	if evicted > 0 {
		c.sessionsEvicted.Add(float64(evicted))
	}
}

// SessionsRevoked records a revoke all
func (c *Collector) SessionsRevoked() {
	c.sessionsRevoked.Inc()
}

// Authentication records a gate outcome
func (c *Collector) Authentication(outcome string) {
	c.authentications.WithLabelValues(outcome).Inc()
}

// Lifecycle records a lifecycle token operation
func (c *Collector) Lifecycle(kind auth.TokenKind, action, outcome string) {
	c.lifecycle.WithLabelValues(kind.String(), action, outcome).Inc()
}

// Handler returns the Prometheus scrape handler
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
