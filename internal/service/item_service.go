// Package service contains the application services that sit between the
// HTTP layer and the stores.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tessellate/items-api/internal/domain"
	"github.com/tessellate/items-api/internal/idempotency"
	"github.com/tessellate/items-api/internal/platform/logger"
	"github.com/tessellate/items-api/internal/store"
)

// CreateOutcome is the result of an idempotent create. Body is the
// canonical serialized response: for a replay it is returned
// byte-for-byte as originally stored.
type CreateOutcome struct {
	StatusCode int
	Body       []byte
	Replayed   bool
}

// ItemService orchestrates item mutations and reads. Creates run through
// the idempotency ledger inside a single transaction so that the item row
// and its ledger record share one unit of durability.
type ItemService struct {
	db     *sql.DB
	items  store.ItemStore
	ledger *idempotency.Ledger
	logger *slog.Logger
}

// NewItemService creates an ItemService with its required dependencies.
func NewItemService(
	db *sql.DB,
	items store.ItemStore,
	ledger *idempotency.Ledger,
	log *slog.Logger,
) *ItemService {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if items == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("item store cannot be nil")
	}
	if ledger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("idempotency ledger cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &ItemService{
		db:     db,
		items:  items,
		ledger: ledger,
		logger: log.With(slog.String("component", "item_service")),
	}
}

// CreateItem performs an idempotent create. rawBody is the request body
// exactly as received; its canonical hash scopes the idempotency key to
// this payload. The first request with a given (principal, route, key)
// creates the item and records the response; retries replay that response
// without creating anything; reuse of the key with a different payload is
// a conflict.
func (s *ItemService) CreateItem(
	ctx context.Context,
	principalID, routeKey, idemKey string,
	rawBody []byte,
	name string,
) (*CreateOutcome, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	hash, err := idempotency.HashRequest(rawBody)
	if err != nil {
		return nil, domain.InvalidArgument("request body is not valid JSON")
	}

	outcome, err := s.ledger.Lookup(ctx, principalID, routeKey, idemKey, hash)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	switch outcome.Kind {
	case idempotency.Replay:
		return &CreateOutcome{
			StatusCode: outcome.StatusCode,
			Body:       outcome.Body,
			Replayed:   true,
		}, nil
	case idempotency.KeyReusedConflict:
		return nil, domain.Conflict("idempotency key was already used with a different request payload")
	}

	item, err := domain.NewItem(name)
	if err != nil {
		return nil, err
	}

	var body []byte
	txErr := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.items.WithTx(tx).Create(ctx, item); err != nil {
			return err
		}

		b, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("serializing create response: %w", err)
		}

		recorded, err := s.ledger.WithTx(tx).Record(ctx, &store.IdempotencyRecord{
			PrincipalID:  principalID,
			RouteKey:     routeKey,
			IdemKey:      idemKey,
			RequestHash:  hash,
			StatusCode:   http.StatusCreated,
			ResponseBody: b,
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if !recorded {
			// A concurrent duplicate won the insert race. Abort so our
			// item rolls back; the winner's record is replayed below.
			return store.ErrDuplicate
		}

		body = b
		return nil
	})
	if txErr != nil {
		if store.IsDuplicateError(txErr) {
			return s.replayAfterLostRace(ctx, principalID, routeKey, idemKey, hash)
		}
		return nil, txErr
	}

	log.Info("item created",
		slog.Int64("item_id", item.ID),
		slog.String("route_key", routeKey),
	)
	return &CreateOutcome{
		StatusCode: http.StatusCreated,
		Body:       body,
	}, nil
}

// replayAfterLostRace fetches the winner's stored response after this
// request lost the ledger insert race.
func (s *ItemService) replayAfterLostRace(
	ctx context.Context,
	principalID, routeKey, idemKey, hash string,
) (*CreateOutcome, error) {
	outcome, err := s.ledger.Lookup(ctx, principalID, routeKey, idemKey, hash)
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup after lost race: %w", err)
	}

	switch outcome.Kind {
	case idempotency.Replay:
		return &CreateOutcome{
			StatusCode: outcome.StatusCode,
			Body:       outcome.Body,
			Replayed:   true,
		}, nil
	case idempotency.KeyReusedConflict:
		return nil, domain.Conflict("idempotency key was already used with a different request payload")
	default:
		// The constraint fired but no record is visible. Committed records
		// are never deleted, so this should not happen.
		return nil, domain.Internal("idempotent create could not be resolved")
	}
}

// GetItem retrieves a single item by ID.
func (s *ItemService) GetItem(ctx context.Context, id int64) (*domain.Item, error) {
	return s.items.GetByID(ctx, id)
}

// UpdateItem replaces the item's name and returns the updated item.
func (s *ItemService) UpdateItem(ctx context.Context, id int64, name string) (*domain.Item, error) {
	if err := domain.ValidateItemName(name); err != nil {
		return nil, err
	}
	return s.items.UpdateName(ctx, id, name)
}

// DeleteItem removes an item. Deleting an absent ID succeeds so the
// operation is naturally idempotent.
func (s *ItemService) DeleteItem(ctx context.Context, id int64) error {
	return s.items.Delete(ctx, id)
}

// ListItems returns one page of items in (created_at, id) order.
func (s *ItemService) ListItems(ctx context.Context, params store.ListParams) (*store.ItemPage, error) {
	return s.items.List(ctx, params)
}
