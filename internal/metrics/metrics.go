// Package metrics exposes Prometheus collectors for the login flow.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for login attempts
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeRateLimited        = "rate_limited"
	OutcomeError              = "error"
)

// Surface labels for where a login came from
const (
	SurfaceForm = "form"
	SurfaceAPI  = "api"
)

// LoginAttempts counts login attempts by surface and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "supportdesk_login_attempts_total",
		Help: "Total number of login attempts",
	},
	[]string{"surface", "outcome"},
)

// LoginDuration is how long the credential check took
var LoginDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "supportdesk_login_duration_seconds",
		Help:    "Login attempt duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"surface"},
)

// StaleLoginResults counts login results dropped because the form was gone
var StaleLoginResults = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "supportdesk_login_stale_results_total",
		Help: "Login results that arrived after the form was closed",
	},
)

// ActiveSessions is the number of sessions issued minus sessions ended by this process
var ActiveSessions = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "supportdesk_sessions_active",
		Help: "Sessions issued minus sessions ended since start",
	},
)

// NewRegistry returns a registry with the login collectors and the Go and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	RegisterMetrics(reg)
	return reg
}

// RegisterMetrics registers the login collectors with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(LoginDuration)
	reg.MustRegister(StaleLoginResults)
	reg.MustRegister(ActiveSessions)
}

// Handler serves the metrics in reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// RecordLogin records one login attempt
func RecordLogin(surface, outcome string, duration time.Duration) {
	LoginAttempts.WithLabelValues(surface, outcome).Inc()
	LoginDuration.WithLabelValues(surface).Observe(duration.Seconds())
	if outcome == OutcomeSuccess {
		ActiveSessions.Inc()
	}
}

// RecordLogout records an ended session
func RecordLogout() {
	ActiveSessions.Dec()
}

// RecordStaleResult records a login result nobody was waiting for
func RecordStaleResult() {
	StaleLoginResults.Inc()
}
