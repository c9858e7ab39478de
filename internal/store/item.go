package store

import (
	"context"
	"database/sql"

	"github.com/tessellate/items-api/internal/domain"
	"github.com/tessellate/items-api/internal/pagination"
)

// List limit bounds. Requests outside [MinListLimit, MaxListLimit] are
// silently clamped rather than rejected.
const (
	MinListLimit     = 1
	MaxListLimit     = 100
	DefaultListLimit = 25
)

// ClampListLimit forces a requested page size into [MinListLimit,
// MaxListLimit]. Absent-limit defaulting is the caller's concern, not
// clamping's: a requested zero or negative limit clamps to the lower
// bound like any other out-of-range value.
func ClampListLimit(limit int) int {
	if limit < MinListLimit {
		return MinListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// ListParams controls a paginated listing.
type ListParams struct {
	// Limit is the requested page size; implementations clamp it.
	Limit int

	// After, when non-nil, restricts the page to rows strictly greater
	// than this position in (created_at, id) order.
	After *pagination.Cursor
}

// ItemPage is one page of a paginated listing.
type ItemPage struct {
	Items []*domain.Item

	// NextCursor is the position of the last retained row when more rows
	// exist past this page, nil at the end of the collection.
	NextCursor *pagination.Cursor
}

// ItemStore defines the interface for item data persistence.
type ItemStore interface {
	// Create saves a new item, assigning its ID and persisting the
	// creation timestamp. The item's ID field is populated on return.
	// Returns a validation error from the domain Item if data is invalid.
	Create(ctx context.Context, item *domain.Item) error

	// GetByID retrieves an item by its ID.
	// Returns ErrItemNotFound if the item does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Item, error)

	// UpdateName replaces an existing item's name.
	// Returns ErrItemNotFound if the item does not exist.
	UpdateName(ctx context.Context, id int64, name string) (*domain.Item, error)

	// Delete removes an item. Deleting an absent ID is not an error;
	// delete is idempotent by contract.
	Delete(ctx context.Context, id int64) error

	// List returns one page of items in ascending (created_at, id) order.
	// The ordering is strictly deterministic so cursor pagination never
	// skips or duplicates rows, even when items share a timestamp.
	List(ctx context.Context, params ListParams) (*ItemPage, error)

	// WithTx returns a store bound to the given transaction, for use with
	// RunInTransaction.
	WithTx(tx *sql.Tx) ItemStore
}
