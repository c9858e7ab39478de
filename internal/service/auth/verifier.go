// Package auth provides bearer-token verification. Token internals are
// deliberately contained here; the rest of the application only sees the
// TokenVerifier capability and the Principal it produces.
package auth

import (
	"context"
	"errors"
)

// Verification errors. Callers map both onto 401; the distinction only
// matters for the client-facing message.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// Principal is the authenticated identity a request is attributed to,
// plus the capability scopes it holds. Scopes are opaque strings; the
// only supported check is subset membership.
type Principal struct {
	Subject string
	scopes  map[string]struct{}
}

// NewPrincipal builds a Principal from a subject and its scope list.
func NewPrincipal(subject string, scopes []string) *Principal {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return &Principal{Subject: subject, scopes: set}
}

// HasScopes reports whether the principal holds every required scope.
func (p *Principal) HasScopes(required ...string) bool {
	for _, r := range required {
		if _, ok := p.scopes[r]; !ok {
			return false
		}
	}
	return true
}

// TokenVerifier validates a bearer token and resolves the Principal it
// represents.
type TokenVerifier interface {
	// VerifyToken validates the provided token string. Returns
	// ErrExpiredToken for a well-formed but expired token and
	// ErrInvalidToken for anything else that fails verification.
	VerifyToken(ctx context.Context, token string) (*Principal, error)
}
