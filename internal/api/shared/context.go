package shared

import (
	"context"

	"github.com/google/uuid"
	"github.com/tessellate/items-api/internal/service/auth"
)

// Key type for context values
type ContextKey string

// Context keys for per-request values. The request context is immutable:
// each value is attached exactly once at pipeline entry and read-only
// afterwards; nothing here is shared across requests.
const (
	// RequestIDContextKey is the context key for the request ID.
	RequestIDContextKey ContextKey = "requestID"

	// TraceparentContextKey is the context key for the inbound W3C
	// traceparent header value, when one was supplied.
	TraceparentContextKey ContextKey = "traceparent"

	// PrincipalContextKey is the context key for the authenticated
	// principal.
	PrincipalContextKey ContextKey = "principal"
)

// Headers echoed on every response.
const (
	RequestIDHeader   = "X-Request-Id"
	TraceparentHeader = "traceparent"
)

// NewRequestID generates a fresh request identifier. UUIDv4 gives enough
// randomness that collisions across concurrent requests are not a concern.
func NewRequestID() string {
	return "req_" + uuid.NewString()
}

// WithRequestID attaches a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDContextKey, requestID)
}

// GetRequestID retrieves the request ID from the context. The fallback
// keeps error envelopes well-formed on paths that run before the
// pipeline has attached one.
func GetRequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(RequestIDContextKey).(string); ok && rid != "" {
		return rid
	}
	return "unknown"
}

// WithTraceparent attaches the inbound traceparent value to the context.
func WithTraceparent(ctx context.Context, traceparent string) context.Context {
	return context.WithValue(ctx, TraceparentContextKey, traceparent)
}

// GetTraceparent retrieves the traceparent from the context, empty if the
// request carried none.
func GetTraceparent(ctx context.Context) string {
	tp, _ := ctx.Value(TraceparentContextKey).(string)
	return tp
}

// WithPrincipal attaches the authenticated principal to the context.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

// GetPrincipal retrieves the authenticated principal from the context.
// Returns false if the request has not passed authentication.
func GetPrincipal(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(*auth.Principal)
	return p, ok && p != nil
}
