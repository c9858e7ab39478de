package store

import (
	"context"
	"database/sql"
	"time"
)

// IdempotencyRecord is the stored outcome of one idempotent write. The
// triple (PrincipalID, RouteKey, IdemKey) is unique at the storage layer;
// that constraint, not application logic, decides the winner when
// concurrent duplicate requests race to insert. Records are created
// exactly once and never mutated.
type IdempotencyRecord struct {
	PrincipalID  string
	RouteKey     string
	IdemKey      string
	RequestHash  string
	StatusCode   int
	ResponseBody []byte
	CreatedAt    time.Time
}

// IdempotencyStore defines the interface for idempotency record persistence.
//
// Retention is a deliberate extension point: records are currently kept
// forever. An implementation adding expiry should prune on CreatedAt and
// must never remove a record while a retry of its write could still arrive.
type IdempotencyStore interface {
	// Get retrieves the record for (principalID, routeKey, idemKey).
	// Returns ErrNotFound if no record exists.
	Get(ctx context.Context, principalID, routeKey, idemKey string) (*IdempotencyRecord, error)

	// Insert stores a new record. Returns ErrDuplicate if a record for
	// the same (principal, route, key) already exists; the caller treats
	// that as losing the race, and the stored record is authoritative.
	Insert(ctx context.Context, rec *IdempotencyRecord) error

	// WithTx returns a store bound to the given transaction, for use with
	// RunInTransaction.
	WithTx(tx *sql.Tx) IdempotencyStore
}
