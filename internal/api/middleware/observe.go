package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tessellate/items-api/internal/platform/logger"
	"github.com/tessellate/items-api/internal/platform/metrics"
)

// statusRecorder captures the status code written downstream so the
// observation stage can report the status the pipeline actually sent,
// including statuses synthesized by inner stages such as the 504 from
// the deadline enforcer.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// Observe records a counter and latency histogram sample per request and
// emits one structured completion log line. It must sit outside the
// deadline stage so its view of the status matches what the client saw.
func Observe(rec *metrics.Recorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(sr, r)

			status := sr.status
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)
			path := routePattern(r)

			if rec != nil {
				rec.ObserveRequest(r.Method, path, status, duration)
			}

			log := logger.FromContext(r.Context())
			attrs := []any{
				"method", r.Method,
				"path", path,
				"status", status,
				"duration_ms", duration.Milliseconds(),
				"bytes", sr.bytes,
			}
			if query := r.URL.RawQuery; query != "" {
				attrs = append(attrs, "query", query)
			}
			log.Info("request completed", attrs...)
		})
	}
}

// routePattern prefers the chi route template ("/v1/items/{id}") over the
// raw path so metric label cardinality stays bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
