// Package middleware provides the ordered HTTP pipeline stages: request
// context setup, observation, deadline enforcement, and authentication.
package middleware

import "net/http"

// Middleware wraps an http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain composes middlewares so the first listed runs outermost. The
// router declares its pipeline as an explicit ordered slice and applies
// it with Chain, keeping the stage order visible in one place.
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		h := final
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}
