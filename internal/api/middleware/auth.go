package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tessellate/items-api/internal/api/shared"
	"github.com/tessellate/items-api/internal/domain"
	"github.com/tessellate/items-api/internal/platform/logger"
	"github.com/tessellate/items-api/internal/service/auth"
)

// Authenticate extracts and verifies the bearer token, attaching the
// resulting principal to the request context. Requests without a valid
// token are rejected with the UNAUTHORIZED envelope before any handler
// runs.
func Authenticate(verifier auth.TokenVerifier) Middleware {
	if verifier == nil {
		panic("ALLOW-PANIC: Constructor enforcing required dependency")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				shared.RespondWithError(w, r, domain.CodeUnauthorized, "missing or malformed Authorization header")
				return
			}

			principal, err := verifier.VerifyToken(r.Context(), token)
			if err != nil {
				logger.FromContext(r.Context()).Debug("token verification failed",
					"error", err.Error(),
				)
				message := "invalid token"
				if errors.Is(err, auth.ErrExpiredToken) {
					message = "token expired"
				}
				shared.RespondWithError(w, r, domain.CodeUnauthorized, message)
				return
			}

			ctx := shared.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScopes rejects authenticated requests whose principal lacks any
// of the required scopes. It must run inside Authenticate.
func RequireScopes(scopes ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.GetPrincipal(r.Context())
			if !ok {
				shared.RespondWithError(w, r, domain.CodeUnauthorized, "authentication required")
				return
			}
			if !principal.HasScopes(scopes...) {
				shared.RespondWithError(w, r, domain.CodeForbidden, "insufficient scope")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
