package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/tessellate/items-api/internal/domain"
	"github.com/tessellate/items-api/internal/pagination"
	"github.com/tessellate/items-api/internal/platform/logger"
	"github.com/tessellate/items-api/internal/store"
)

// SQLItemStore implements the store.ItemStore interface over database/sql.
type SQLItemStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewItemStore creates a SQL implementation of the ItemStore interface.
// It accepts a database connection or transaction managed by the caller.
// If logger is nil, a default logger will be used.
func NewItemStore(db store.DBTX, log *slog.Logger) *SQLItemStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &SQLItemStore{
		db:     db,
		logger: log.With(slog.String("component", "item_store")),
	}
}

// Ensure SQLItemStore implements store.ItemStore interface
var _ store.ItemStore = (*SQLItemStore)(nil)

// WithTx implements store.ItemStore.WithTx
func (s *SQLItemStore) WithTx(tx *sql.Tx) store.ItemStore {
	return &SQLItemStore{db: tx, logger: s.logger}
}

// Create implements store.ItemStore.Create
// It inserts the item and populates its ID from the store's sequence.
func (s *SQLItemStore) Create(ctx context.Context, item *domain.Item) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := item.Validate(); err != nil {
		return err
	}

	// Timestamps are truncated to microseconds so the value written here
	// and the value read back compare equal on every backend.
	item.CreatedAt = item.CreatedAt.UTC().Truncate(time.Microsecond)

	query := `
		INSERT INTO items (name, created_at)
		VALUES ($1, $2)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query, item.Name, item.CreatedAt).Scan(&item.ID)
	if err != nil {
		log.Error("failed to create item",
			slog.String("error", err.Error()))
		return MapError(err)
	}

	log.Debug("item created",
		slog.Int64("item_id", item.ID))
	return nil
}

// GetByID implements store.ItemStore.GetByID
// Returns store.ErrItemNotFound if the item does not exist.
func (s *SQLItemStore) GetByID(ctx context.Context, id int64) (*domain.Item, error) {
	query := `
		SELECT id, name, created_at
		FROM items
		WHERE id = $1
	`

	var item domain.Item
	err := s.db.QueryRowContext(ctx, query, id).Scan(&item.ID, &item.Name, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrItemNotFound
		}
		return nil, MapError(err)
	}

	item.CreatedAt = item.CreatedAt.UTC()
	return &item, nil
}

// UpdateName implements store.ItemStore.UpdateName
// Returns store.ErrItemNotFound if the item does not exist.
func (s *SQLItemStore) UpdateName(ctx context.Context, id int64, name string) (*domain.Item, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := domain.ValidateItemName(name); err != nil {
		return nil, err
	}

	query := `
		UPDATE items
		SET name = $1
		WHERE id = $2
		RETURNING id, name, created_at
	`

	var item domain.Item
	err := s.db.QueryRowContext(ctx, query, name, id).Scan(&item.ID, &item.Name, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrItemNotFound
		}
		log.Error("failed to update item",
			slog.Int64("item_id", id),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	item.CreatedAt = item.CreatedAt.UTC()
	return &item, nil
}

// Delete implements store.ItemStore.Delete
// Deleting an absent ID is success, not an error.
func (s *SQLItemStore) Delete(ctx context.Context, id int64) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `DELETE FROM items WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		log.Error("failed to delete item",
			slog.Int64("item_id", id),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// List implements store.ItemStore.List
// It fetches limit+1 rows past the cursor position; the extra row only
// signals that another page exists and is never returned.
func (s *SQLItemStore) List(ctx context.Context, params store.ListParams) (*store.ItemPage, error) {
	limit := store.ClampListLimit(params.Limit)

	var (
		rows *sql.Rows
		err  error
	)
	if params.After != nil {
		query := `
			SELECT id, name, created_at
			FROM items
			WHERE created_at > $1 OR (created_at = $1 AND id > $2)
			ORDER BY created_at ASC, id ASC
			LIMIT $3
		`
		rows, err = s.db.QueryContext(ctx, query,
			params.After.CreatedAt.UTC(), params.After.ID, limit+1)
	} else {
		query := `
			SELECT id, name, created_at
			FROM items
			ORDER BY created_at ASC, id ASC
			LIMIT $1
		`
		rows, err = s.db.QueryContext(ctx, query, limit+1)
	}
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*domain.Item, 0, limit)
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		item.CreatedAt = item.CreatedAt.UTC()
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	page := &store.ItemPage{}
	if len(items) > limit {
		items = items[:limit]
		last := items[len(items)-1]
		page.NextCursor = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	page.Items = items

	return page, nil
}
