package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tessellate/items-api/internal/domain"
)

// ErrorDetail is the inner object of the error envelope.
type ErrorDetail struct {
	Code      domain.Code `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id"`
}

// ErrorEnvelope is the fixed wrapper shape for all error responses. No
// failure path may produce a body of any other shape.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithRawJSON writes pre-serialized JSON verbatim. Replayed
// idempotent responses use this so the stored body reaches the client
// byte-for-byte.
func RespondWithRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// RespondWithError writes an error envelope with the code's fixed HTTP
// status, carrying the request ID from the context.
func RespondWithError(w http.ResponseWriter, r *http.Request, code domain.Code, message string) {
	envelope := ErrorEnvelope{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			RequestID: GetRequestID(r.Context()),
		},
	}

	RespondWithJSON(w, r, code.HTTPStatus(), envelope)
}
