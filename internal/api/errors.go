// Package api provides HTTP handlers for the API.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tessellate/items-api/internal/api/shared"
	"github.com/tessellate/items-api/internal/domain"
	"github.com/tessellate/items-api/internal/pagination"
	"github.com/tessellate/items-api/internal/platform/logger"
	"github.com/tessellate/items-api/internal/service/auth"
	"github.com/tessellate/items-api/internal/store"
)

// MapErrorToCode maps internal errors to the envelope code taxonomy.
// Anything unclassified becomes INTERNAL so no error can leave without a
// fixed code and status.
func MapErrorToCode(err error) domain.Code {
	if de, ok := domain.AsError(err); ok {
		return de.Code
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return domain.CodeNotFound

	case errors.Is(err, store.ErrDuplicate):
		return domain.CodeConflict

	case errors.Is(err, pagination.ErrInvalidCursor),
		errors.Is(err, domain.ErrEmptyItemName),
		errors.Is(err, domain.ErrItemNameTooLong),
		errors.Is(err, store.ErrInvalidEntity):
		return domain.CodeInvalidArgument

	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken):
		return domain.CodeUnauthorized

	case errors.Is(err, context.DeadlineExceeded):
		return domain.CodeTimeout

	default:
		return domain.CodeInternal
	}
}

// GetSafeErrorMessage returns a sanitized, client-facing message for the
// error. Raw internal details never reach the response body.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	if de, ok := domain.AsError(err); ok {
		return de.Message
	}

	switch {
	case errors.Is(err, store.ErrItemNotFound):
		return "item not found"
	case errors.Is(err, store.ErrNotFound):
		return "not found"
	case errors.Is(err, store.ErrDuplicate):
		return "conflicting resource already exists"
	case errors.Is(err, pagination.ErrInvalidCursor):
		return "invalid cursor"
	case errors.Is(err, domain.ErrEmptyItemName):
		return "name must not be empty"
	case errors.Is(err, domain.ErrItemNameTooLong):
		return "name exceeds maximum length"
	case errors.Is(err, auth.ErrExpiredToken):
		return "token expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return "invalid token"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	default:
		return "An unexpected error occurred"
	}
}

// HandleError is the single boundary through which every handler failure
// leaves the API. It classifies the error, logs it (full detail stays in
// the logs, never the response), and writes the envelope.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())

	code := MapErrorToCode(err)
	message := GetSafeErrorMessage(err)

	attrs := []slog.Attr{
		slog.String("code", string(code)),
		slog.String("error", err.Error()),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
	}

	level := slog.LevelDebug
	if code == domain.CodeInternal {
		level = slog.LevelError
	}
	log.LogAttrs(r.Context(), level, "request failed", attrs...)

	shared.RespondWithError(w, r, code, message)
}
