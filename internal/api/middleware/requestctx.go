package middleware

import (
	"log/slog"
	"net/http"

	"github.com/tessellate/items-api/internal/api/shared"
	"github.com/tessellate/items-api/internal/platform/logger"
)

// RequestContext establishes the per-request identity before any other
// stage runs. It reuses the caller's X-Request-Id when present (otherwise
// generates one), captures an incoming traceparent, echoes both back on
// the response, and attaches a request-scoped logger to the context so
// every downstream log line carries the correlation attributes.
func RequestContext(base *slog.Logger) Middleware {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(shared.RequestIDHeader)
			if requestID == "" {
				requestID = shared.NewRequestID()
			}

			ctx := shared.WithRequestID(r.Context(), requestID)
			log := base.With(slog.String("request_id", requestID))

			traceparent := r.Header.Get(shared.TraceparentHeader)
			if traceparent != "" {
				ctx = shared.WithTraceparent(ctx, traceparent)
				log = log.With(slog.String("traceparent", traceparent))
			}

			ctx = logger.WithLogger(ctx, log)

			// Headers go out before the handler writes anything, so
			// even error and timeout responses carry them.
			w.Header().Set(shared.RequestIDHeader, requestID)
			if traceparent != "" {
				w.Header().Set(shared.TraceparentHeader, traceparent)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
