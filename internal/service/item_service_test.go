package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/tessellate/items-api/internal/domain"
	"github.com/tessellate/items-api/internal/idempotency"
	"github.com/tessellate/items-api/internal/pagination"
	"github.com/tessellate/items-api/internal/platform/sqlstore"
	"github.com/tessellate/items-api/internal/store"
)

const itemsRouteKey = "POST /v1/items"

func newTestService(t *testing.T) (*ItemService, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, sqlstore.InitSchema(context.Background(), db, sqlstore.DialectSQLite))

	items := sqlstore.NewItemStore(db, nil)
	ledger := idempotency.NewLedger(sqlstore.NewIdempotencyStore(db, nil), nil)
	return NewItemService(db, items, ledger, nil), db
}

func createBody(t *testing.T, name string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]string{"name": name})
	require.NoError(t, err)
	return b
}

func TestCreateItemFirstRequest(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	out, err := svc.CreateItem(ctx, "user-1", itemsRouteKey, "k0", createBody(t, "alpha"), "alpha")
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, out.StatusCode)
	assert.False(t, out.Replayed)

	var created domain.Item
	require.NoError(t, json.Unmarshal(out.Body, &created))
	assert.Equal(t, "alpha", created.Name)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	fetched, err := svc.GetItem(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alpha", fetched.Name)
}

func TestCreateItemReplaysStoredResponse(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	body := createBody(t, "alpha")

	first, err := svc.CreateItem(ctx, "user-1", itemsRouteKey, "k0", body, "alpha")
	require.NoError(t, err)

	second, err := svc.CreateItem(ctx, "user-1", itemsRouteKey, "k0", body, "alpha")
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.StatusCode, second.StatusCode)
	assert.Equal(t, first.Body, second.Body, "replay must be byte-for-byte")

	// Only one item exists despite two requests.
	page, err := svc.ListItems(ctx, store.ListParams{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestCreateItemKeyReuseConflict(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, "user-1", itemsRouteKey, "k0", createBody(t, "alpha"), "alpha")
	require.NoError(t, err)

	_, err = svc.CreateItem(ctx, "user-1", itemsRouteKey, "k0", createBody(t, "beta"), "beta")
	require.Error(t, err)

	de, ok := domain.AsError(err)
	require.True(t, ok)
	assert.Equal(t, domain.CodeConflict, de.Code)

	// The original write is untouched.
	page, err := svc.ListItems(ctx, store.ListParams{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "alpha", page.Items[0].Name)
}

// raceIdempotencyStore implements store.IdempotencyStore with function
// fields so a test can script the ledger's view of a concurrent race.
type raceIdempotencyStore struct {
	getFn    func(ctx context.Context, principalID, routeKey, idemKey string) (*store.IdempotencyRecord, error)
	insertFn func(ctx context.Context, rec *store.IdempotencyRecord) error
}

func (m *raceIdempotencyStore) Get(
	ctx context.Context,
	principalID, routeKey, idemKey string,
) (*store.IdempotencyRecord, error) {
	return m.getFn(ctx, principalID, routeKey, idemKey)
}

func (m *raceIdempotencyStore) Insert(ctx context.Context, rec *store.IdempotencyRecord) error {
	return m.insertFn(ctx, rec)
}

func (m *raceIdempotencyStore) WithTx(tx *sql.Tx) store.IdempotencyStore { return m }

func TestCreateItemLostRaceReplaysWinner(t *testing.T) {
	t.Parallel()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlstore.InitSchema(context.Background(), db, sqlstore.DialectSQLite))

	ctx := context.Background()
	body := createBody(t, "alpha")
	hash, err := idempotency.HashRequest(body)
	require.NoError(t, err)

	winnerBody := []byte(`{"id":7,"name":"alpha","created_at":"2026-01-02T03:04:05Z"}`)
	winner := &store.IdempotencyRecord{
		PrincipalID:  "user-1",
		RouteKey:     itemsRouteKey,
		IdemKey:      "k0",
		RequestHash:  hash,
		StatusCode:   http.StatusCreated,
		ResponseBody: winnerBody,
	}

	// The ledger sees nothing until this request's insert loses to a
	// concurrent duplicate, after which the winner's record is visible.
	lostRace := false
	ledgerStore := &raceIdempotencyStore{
		getFn: func(_ context.Context, _, _, _ string) (*store.IdempotencyRecord, error) {
			if !lostRace {
				return nil, store.ErrNotFound
			}
			return winner, nil
		},
		insertFn: func(_ context.Context, _ *store.IdempotencyRecord) error {
			lostRace = true
			return store.ErrDuplicate
		},
	}

	svc := NewItemService(db, sqlstore.NewItemStore(db, nil),
		idempotency.NewLedger(ledgerStore, nil), nil)

	out, err := svc.CreateItem(ctx, "user-1", itemsRouteKey, "k0", body, "alpha")
	require.NoError(t, err)

	assert.True(t, out.Replayed)
	assert.Equal(t, http.StatusCreated, out.StatusCode)
	assert.Equal(t, winnerBody, out.Body, "loser must return the winner's stored response byte-for-byte")

	// The loser's item insert rolled back with the aborted transaction.
	page, err := svc.ListItems(ctx, store.ListParams{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestCreateItemKeysScopedPerPrincipal(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	body := createBody(t, "alpha")

	first, err := svc.CreateItem(ctx, "user-1", itemsRouteKey, "k0", body, "alpha")
	require.NoError(t, err)

	second, err := svc.CreateItem(ctx, "user-2", itemsRouteKey, "k0", body, "alpha")
	require.NoError(t, err)

	assert.False(t, second.Replayed)

	var a, b domain.Item
	require.NoError(t, json.Unmarshal(first.Body, &a))
	require.NoError(t, json.Unmarshal(second.Body, &b))
	assert.NotEqual(t, a.ID, b.ID, "each principal gets its own item")
}

func TestCreateItemHashIgnoresKeyOrder(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateItem(ctx, "user-1", itemsRouteKey, "k0",
		[]byte(`{"name":"alpha","note":"x"}`), "alpha")
	require.NoError(t, err)

	// Same payload, different key order: must replay, not conflict.
	second, err := svc.CreateItem(ctx, "user-1", itemsRouteKey, "k0",
		[]byte(`{"note":"x","name":"alpha"}`), "alpha")
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Body, second.Body)
}

func TestCreateItemInvalidName(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, "user-1", itemsRouteKey, "k0", createBody(t, ""), "")
	require.ErrorIs(t, err, domain.ErrEmptyItemName)

	// A failed create leaves no ledger record, so the key is reusable.
	out, err := svc.CreateItem(ctx, "user-1", itemsRouteKey, "k0", createBody(t, "alpha"), "alpha")
	require.NoError(t, err)
	assert.False(t, out.Replayed)
}

func TestUpdateItem(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	out, err := svc.CreateItem(ctx, "user-1", itemsRouteKey, "k0", createBody(t, "alpha"), "alpha")
	require.NoError(t, err)
	var created domain.Item
	require.NoError(t, json.Unmarshal(out.Body, &created))

	updated, err := svc.UpdateItem(ctx, created.ID, "renamed")
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, created.ID, updated.ID)

	_, err = svc.UpdateItem(ctx, created.ID, "")
	require.ErrorIs(t, err, domain.ErrEmptyItemName)

	_, err = svc.UpdateItem(ctx, 99999, "ghost")
	require.ErrorIs(t, err, store.ErrItemNotFound)
}

func TestDeleteItemIdempotent(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	out, err := svc.CreateItem(ctx, "user-1", itemsRouteKey, "k0", createBody(t, "alpha"), "alpha")
	require.NoError(t, err)
	var created domain.Item
	require.NoError(t, json.Unmarshal(out.Body, &created))

	require.NoError(t, svc.DeleteItem(ctx, created.ID))
	require.NoError(t, svc.DeleteItem(ctx, created.ID), "repeat delete succeeds")

	_, err = svc.GetItem(ctx, created.ID)
	require.ErrorIs(t, err, store.ErrItemNotFound)
}

func TestListItemsPaginatesAcrossPages(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	for i, name := range []string{"a", "b", "c", "d", "e"} {
		_, err := svc.CreateItem(ctx, "user-1", itemsRouteKey,
			"k"+name, createBody(t, name), name)
		require.NoError(t, err, "create %d", i)
	}

	var collected []string
	var after *pagination.Cursor
	pages := 0
	for {
		page, err := svc.ListItems(ctx, store.ListParams{Limit: 2, After: after})
		require.NoError(t, err)
		pages++
		for _, it := range page.Items {
			collected = append(collected, it.Name)
		}
		if page.NextCursor == nil {
			break
		}
		after = page.NextCursor
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, collected)
}
