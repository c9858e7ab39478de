// Package metrics provides request-level instrumentation exposed in
// Prometheus text format on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the request counter and latency histogram, both labeled
// by (method, normalized path template, status code). It owns a private
// registry so tests can create independent recorders.
type Recorder struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New creates a Recorder with a fresh registry.
func New() *Recorder {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	latency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	registry.MustRegister(requests, latency)

	return &Recorder{
		registry: registry,
		requests: requests,
		latency:  latency,
	}
}

// ObserveRequest records one completed request. The path should be the
// route template (e.g. /v1/items/{id}), not the raw URL, to keep label
// cardinality bounded.
func (r *Recorder) ObserveRequest(method, path string, statusCode int, duration time.Duration) {
	labels := prometheus.Labels{
		"method":      method,
		"path":        path,
		"status_code": strconv.Itoa(statusCode),
	}
	r.requests.With(labels).Inc()
	r.latency.With(labels).Observe(duration.Seconds())
}

// Handler returns the plaintext exposition handler for this recorder's
// registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
