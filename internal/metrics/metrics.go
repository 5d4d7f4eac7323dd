// Package metrics provides Prometheus metrics for the HTTP surface and the
// reference engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafold_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediafold_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediafold_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	referenceOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafold_reference_ops_total",
			Help: "Reference substitutions by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	blobBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediafold_blob_payload_bytes",
			Help:    "Size of payloads moved between documents and the blob store",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		},
		[]string{"op"},
	)
)

// Engine operations and outcomes.
const (
	OpExpand   = "expand"
	OpCollapse = "collapse"
	OpToggle   = "toggle"

	OutcomeOK         = "ok"
	OutcomeUnresolved = "unresolved"
	OutcomeQuota      = "quota"
	OutcomeError      = "error"
)

// ObserveReference counts one reference substitution attempt.
func ObserveReference(op, outcome string) {
	referenceOps.WithLabelValues(op, outcome).Inc()
}

// ObservePayload records the size of a payload moved by op.
func ObservePayload(op string, size int) {
	blobBytes.WithLabelValues(op).Observe(float64(size))
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streams working behind the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records Prometheus metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := newResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		// Route patterns keep label cardinality bounded.
		path := r.URL.Path
		if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
			if pattern := routeCtx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}
