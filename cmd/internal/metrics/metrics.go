// Package metrics exposes stepgate's Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so components can run without it.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Elevation events.
const (
	ElevationGuardPassed    = "guard_passed"
	ElevationGuardRedirect  = "guard_redirect"
	ElevationBegin          = "begin"
	ElevationConfirmSuccess = "confirm_success"
	ElevationConfirmFailure = "confirm_mismatch"
)

// Sign-in results.
const (
	SignInSuccess     = "success"
	SignInFailed      = "failed"
	SignInRateLimited = "rate_limited"
)

// Metrics owns a private registry so tests can construct many instances.
type Metrics struct {
	reg *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	signIns      *prometheus.CounterVec
	elevation    *prometheus.CounterVec
}

// New registers all collectors, including Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		reg: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepgate",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status class.",
		}, []string{"method", "status_class"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stepgate",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepgate",
			Subsystem: "auth",
			Name:      "sign_in_total",
			Help:      "Primary sign-in attempts by result.",
		}, []string{"result"}),
		elevation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepgate",
			Subsystem: "elevation",
			Name:      "events_total",
			Help:      "Second-step gate decisions and confirmations.",
		}, []string{"event"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.signIns,
		m.elevation,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, statusClass string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, statusClass).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

// SignIn records a sign-in result.
func (m *Metrics) SignIn(result string) {
	if m == nil {
		return
	}
	m.signIns.WithLabelValues(result).Inc()
}

// Elevation records a gate event.
func (m *Metrics) Elevation(event string) {
	if m == nil {
		return
	}
	m.elevation.WithLabelValues(event).Inc()
}
