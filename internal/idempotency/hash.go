// Package idempotency implements the write-deduplication ledger: prior
// write responses are recorded keyed by (principal, route, idempotency
// key) and replayed verbatim when the same logical write is retried.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// HashRequest computes the content fingerprint of a request payload over
// its canonical JSON form: object keys sorted, compact separators. Two
// semantically identical payloads hash identically regardless of field
// order in the original request body.
func HashRequest(body []byte) (string, error) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("hash request: %w", err)
	}

	// encoding/json marshals map keys in sorted order with no
	// insignificant whitespace, which is exactly the canonical form.
	canonical, err := json.Marshal(decoded)
	if err != nil {
		return "", fmt.Errorf("hash request: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// RouteKey builds the ledger's route scope for a write endpoint. The same
// idempotency key under a different route is an independent slot.
func RouteKey(method, path string) string {
	return strings.ToUpper(method) + " " + path
}
