package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/tessellate/items-api/internal/platform/logger"
	"github.com/tessellate/items-api/internal/store"
)

// OutcomeKind classifies the result of a ledger lookup.
type OutcomeKind int

const (
	// Absent means no record exists; the caller proceeds with normal
	// processing.
	Absent OutcomeKind = iota

	// Replay means a record exists with a matching request hash; the
	// caller must return the stored status and body byte-for-byte
	// without re-executing side effects.
	Replay

	// KeyReusedConflict means a record exists but the request hash
	// differs: the key was reused with a different payload. The caller
	// surfaces a conflict; the original write is left untouched.
	KeyReusedConflict
)

// Outcome is the result of a ledger lookup. StatusCode and Body are only
// meaningful for Replay.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Body       []byte
}

// Ledger records and replays prior write responses. The underlying
// store's uniqueness constraint on (principal, route, key) is the sole
// source of truth for "exactly one winner" under concurrent duplicates.
type Ledger struct {
	store  store.IdempotencyStore
	logger *slog.Logger
}

// NewLedger creates a Ledger over the given idempotency store.
// If logger is nil, a default logger will be used.
func NewLedger(s store.IdempotencyStore, log *slog.Logger) *Ledger {
	if s == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("idempotency store cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Ledger{
		store:  s,
		logger: log.With(slog.String("component", "idempotency_ledger")),
	}
}

// WithTx returns a ledger bound to the given transaction so Record can
// participate in the same unit of durability as the mutation it follows.
func (l *Ledger) WithTx(tx *sql.Tx) *Ledger {
	return &Ledger{
		store:  l.store.WithTx(tx),
		logger: l.logger,
	}
}

// Lookup consults the ledger before a write is processed.
func (l *Ledger) Lookup(
	ctx context.Context,
	principalID, routeKey, idemKey, requestHash string,
) (Outcome, error) {
	log := logger.FromContextOrDefault(ctx, l.logger)

	rec, err := l.store.Get(ctx, principalID, routeKey, idemKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Outcome{Kind: Absent}, nil
		}
		return Outcome{}, err
	}

	if rec.RequestHash != requestHash {
		log.Warn("idempotency key reused with different payload",
			slog.String("route_key", routeKey))
		return Outcome{Kind: KeyReusedConflict}, nil
	}

	log.Debug("replaying stored response",
		slog.String("route_key", routeKey),
		slog.Int("status_code", rec.StatusCode))
	return Outcome{
		Kind:       Replay,
		StatusCode: rec.StatusCode,
		Body:       rec.ResponseBody,
	}, nil
}

// Record stores the canonical response of a first-time write. It must be
// called only after (or within the same transaction as) the durable
// commit of the underlying mutation. Returns false when the insert lost
// a race to a concurrent duplicate; the already-stored record is
// authoritative and the loss is not an error.
func (l *Ledger) Record(ctx context.Context, rec *store.IdempotencyRecord) (bool, error) {
	log := logger.FromContextOrDefault(ctx, l.logger)

	if err := l.store.Insert(ctx, rec); err != nil {
		if store.IsDuplicateError(err) {
			log.Debug("discarding idempotency record after losing insert race",
				slog.String("route_key", rec.RouteKey))
			return false, nil
		}
		return false, err
	}

	return true, nil
}
