package middleware

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/tessellate/items-api/internal/api/shared"
	"github.com/tessellate/items-api/internal/domain"
	"github.com/tessellate/items-api/internal/platform/logger"
)

// bufferedResponse accumulates a handler's output in memory. Nothing
// reaches the wire until the deadline stage decides the handler won the
// race against the clock, which is what lets the stage synthesize a clean
// 504 envelope after the deadline instead of appending to a half-written
// body.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header)}
}

func (br *bufferedResponse) Header() http.Header { return br.header }

func (br *bufferedResponse) WriteHeader(status int) {
	if br.status == 0 {
		br.status = status
	}
}

func (br *bufferedResponse) Write(b []byte) (int, error) {
	if br.status == 0 {
		br.status = http.StatusOK
	}
	return br.body.Write(b)
}

func (br *bufferedResponse) flush(w http.ResponseWriter) {
	for k, vv := range br.header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	status := br.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(br.body.Bytes())
}

// Timeout enforces a hard per-request deadline. The handler runs against a
// context that expires after d; if it finishes in time its buffered output
// is released unchanged, otherwise the stage writes the TIMEOUT envelope
// itself and any late handler output is discarded with the buffer.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			buf := newBufferedResponse()
			done := make(chan struct{})
			panicked := make(chan interface{}, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
				}()
				next.ServeHTTP(buf, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
				buf.flush(w)

			case p := <-panicked:
				logger.FromContext(r.Context()).Error("handler panicked",
					"panic", p,
					"path", r.URL.Path,
					"method", r.Method,
				)
				shared.RespondWithError(w, r, domain.CodeInternal, "An unexpected error occurred")

			case <-ctx.Done():
				logger.FromContext(r.Context()).Warn("request deadline exceeded",
					"timeout_ms", d.Milliseconds(),
					"path", r.URL.Path,
					"method", r.Method,
				)
				shared.RespondWithError(w, r, domain.CodeTimeout, "request timed out")
			}
		})
	}
}
