package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/tessellate/items-api/internal/platform/logger"
	"github.com/tessellate/items-api/internal/store"
)

// SQLIdempotencyStore implements the store.IdempotencyStore interface
// over database/sql. The uq_idem_scope unique constraint on
// (principal_id, route_key, idem_key) is what arbitrates concurrent
// duplicate inserts.
type SQLIdempotencyStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewIdempotencyStore creates a SQL implementation of the
// IdempotencyStore interface. If logger is nil, a default logger will be
// used.
func NewIdempotencyStore(db store.DBTX, log *slog.Logger) *SQLIdempotencyStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &SQLIdempotencyStore{
		db:     db,
		logger: log.With(slog.String("component", "idempotency_store")),
	}
}

// Ensure SQLIdempotencyStore implements store.IdempotencyStore interface
var _ store.IdempotencyStore = (*SQLIdempotencyStore)(nil)

// WithTx implements store.IdempotencyStore.WithTx
func (s *SQLIdempotencyStore) WithTx(tx *sql.Tx) store.IdempotencyStore {
	return &SQLIdempotencyStore{db: tx, logger: s.logger}
}

// Get implements store.IdempotencyStore.Get
func (s *SQLIdempotencyStore) Get(
	ctx context.Context,
	principalID, routeKey, idemKey string,
) (*store.IdempotencyRecord, error) {
	query := `
		SELECT principal_id, route_key, idem_key, request_hash, status_code, response_body, created_at
		FROM idempotency_records
		WHERE principal_id = $1 AND route_key = $2 AND idem_key = $3
	`

	var (
		rec  store.IdempotencyRecord
		body string
	)
	err := s.db.QueryRowContext(ctx, query, principalID, routeKey, idemKey).Scan(
		&rec.PrincipalID,
		&rec.RouteKey,
		&rec.IdemKey,
		&rec.RequestHash,
		&rec.StatusCode,
		&body,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, MapError(err)
	}

	rec.ResponseBody = []byte(body)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

// Insert implements store.IdempotencyStore.Insert
// Returns store.ErrDuplicate when the unique constraint fires, which the
// ledger treats as losing the race to a concurrent duplicate writer.
func (s *SQLIdempotencyStore) Insert(ctx context.Context, rec *store.IdempotencyRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	createdAt = createdAt.UTC().Truncate(time.Microsecond)

	query := `
		INSERT INTO idempotency_records
			(principal_id, route_key, idem_key, request_hash, status_code, response_body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.PrincipalID,
		rec.RouteKey,
		rec.IdemKey,
		rec.RequestHash,
		rec.StatusCode,
		string(rec.ResponseBody),
		createdAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("idempotency record already exists",
				slog.String("route_key", rec.RouteKey))
			return MapError(err)
		}
		log.Error("failed to insert idempotency record",
			slog.String("route_key", rec.RouteKey),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	rec.CreatedAt = createdAt
	return nil
}
