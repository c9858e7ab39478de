// Package pagination implements the opaque cursor codec used for
// deterministic, ordered listing. A cursor points at the last row of a
// page as a (created_at, id) pair; rows strictly greater than that pair
// in (created_at, id) order form the next page.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidCursor is returned when a cursor string was not produced by
// Encode. Callers treat it as an invalid argument, never as a crash.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the decoded pagination position. It is ephemeral and never
// persisted.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

// cursorPayload is the serialized inner structure. The timestamp travels
// as RFC 3339 with nanoseconds so the position round-trips exactly.
type cursorPayload struct {
	CreatedAt string `json:"created_at"`
	ID        int64  `json:"id"`
}

// Encode packs a (created_at, id) position into an opaque URL-safe string
// without padding. The result contains no structural delimiters from the
// inner encoding.
func Encode(createdAt time.Time, id int64) string {
	raw, err := json.Marshal(cursorPayload{
		CreatedAt: createdAt.UTC().Format(time.RFC3339Nano),
		ID:        id,
	})
	if err != nil {
		// Marshaling a struct of a string and an int64 cannot fail.
		panic(fmt.Sprintf("pagination: marshal cursor: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode reverses Encode. It accepts both padded and unpadded input and
// returns ErrInvalidCursor for malformed base64, malformed JSON, or
// missing fields.
func Decode(cursor string) (Cursor, error) {
	if cursor == "" {
		return Cursor{}, fmt.Errorf("%w: empty string", ErrInvalidCursor)
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(cursor, "="))
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if payload.CreatedAt == "" {
		return Cursor{}, fmt.Errorf("%w: missing created_at", ErrInvalidCursor)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, payload.CreatedAt)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	return Cursor{CreatedAt: createdAt, ID: payload.ID}, nil
}
