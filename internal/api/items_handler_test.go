package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/tessellate/items-api/internal/api/shared"
	"github.com/tessellate/items-api/internal/idempotency"
	"github.com/tessellate/items-api/internal/platform/sqlstore"
	"github.com/tessellate/items-api/internal/service"
	"github.com/tessellate/items-api/internal/service/auth"
)

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlstore.InitSchema(context.Background(), db, sqlstore.DialectSQLite))

	items := sqlstore.NewItemStore(db, nil)
	ledger := idempotency.NewLedger(sqlstore.NewIdempotencyStore(db, nil), nil)
	svc := service.NewItemService(db, items, ledger, nil)
	handler := NewItemHandler(svc, nil)

	router := chi.NewRouter()
	router.Route("/v1/items", func(r chi.Router) {
		r.Post("/", handler.CreateItem)
		r.Get("/", handler.ListItems)
		r.Get("/{id}", handler.GetItem)
		r.Put("/{id}", handler.UpdateItem)
		r.Delete("/{id}", handler.DeleteItem)
	})
	return router
}

// do performs an authenticated request against the router.
func do(t *testing.T, router http.Handler, method, target, idemKey string, body []byte) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req = req.WithContext(shared.WithPrincipal(req.Context(),
		auth.NewPrincipal("user-1", []string{"items:read", "items:write"})))
	if idemKey != "" {
		req.Header.Set(IdempotencyKeyHeader, idemKey)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func envelopeCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope shared.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	return string(envelope.Error.Code)
}

func TestCreateItemEndpoint(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	rr := do(t, router, http.MethodPost, "/v1/items", "k0", []byte(`{"name":"widget"}`))
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp ItemResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "widget", resp.Name)
	assert.NotZero(t, resp.ID)
	assert.False(t, resp.CreatedAt.IsZero())
}

func TestCreateItemRequiresIdempotencyKey(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	rr := do(t, router, http.MethodPost, "/v1/items", "", []byte(`{"name":"widget"}`))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_ARGUMENT", envelopeCode(t, rr))
}

func TestCreateItemRejectsBadBody(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"missing name", `{}`},
		{"empty name", `{"name":""}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, router, http.MethodPost, "/v1/items", "k-"+tc.name, []byte(tc.body))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "INVALID_ARGUMENT", envelopeCode(t, rr))
		})
	}
}

func TestCreateItemReplay(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	body := []byte(`{"name":"widget"}`)

	first := do(t, router, http.MethodPost, "/v1/items", "k0", body)
	require.Equal(t, http.StatusCreated, first.Code)

	second := do(t, router, http.MethodPost, "/v1/items", "k0", body)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String(), "replay must be byte-for-byte")

	list := do(t, router, http.MethodGet, "/v1/items", "", nil)
	var page ListItemsResponse
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &page))
	assert.Len(t, page.Items, 1)
}

func TestCreateItemReplayAcrossPathSpellings(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	body := []byte(`{"name":"widget"}`)

	first := do(t, router, http.MethodPost, "/v1/items", "k0", body)
	require.Equal(t, http.StatusCreated, first.Code)

	// A trailing slash routes to the same handler and must hit the same
	// idempotency scope, not create a second item.
	second := do(t, router, http.MethodPost, "/v1/items/", "k0", body)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	list := do(t, router, http.MethodGet, "/v1/items", "", nil)
	var page ListItemsResponse
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &page))
	assert.Len(t, page.Items, 1)
}

func TestCreateItemKeyReuseConflict(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	first := do(t, router, http.MethodPost, "/v1/items", "k0", []byte(`{"name":"widget"}`))
	require.Equal(t, http.StatusCreated, first.Code)

	second := do(t, router, http.MethodPost, "/v1/items", "k0", []byte(`{"name":"other"}`))
	require.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "CONFLICT", envelopeCode(t, second))
}

func TestGetItemEndpoint(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	created := do(t, router, http.MethodPost, "/v1/items", "k0", []byte(`{"name":"widget"}`))
	var item ItemResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &item))

	rr := do(t, router, http.MethodGet, "/v1/items/1", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var fetched ItemResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fetched))
	assert.Equal(t, item.ID, fetched.ID)
	assert.Equal(t, "widget", fetched.Name)
}

func TestGetItemNotFound(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	rr := do(t, router, http.MethodGet, "/v1/items/999", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", envelopeCode(t, rr))
}

func TestGetItemInvalidID(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	for _, raw := range []string{"abc", "-1", "0"} {
		rr := do(t, router, http.MethodGet, "/v1/items/"+raw, "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "id %q", raw)
		assert.Equal(t, "INVALID_ARGUMENT", envelopeCode(t, rr))
	}
}

func TestUpdateItemEndpoint(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	do(t, router, http.MethodPost, "/v1/items", "k0", []byte(`{"name":"widget"}`))

	rr := do(t, router, http.MethodPut, "/v1/items/1", "", []byte(`{"name":"renamed"}`))
	require.Equal(t, http.StatusOK, rr.Code)

	var updated ItemResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
	assert.Equal(t, "renamed", updated.Name)

	missing := do(t, router, http.MethodPut, "/v1/items/999", "", []byte(`{"name":"ghost"}`))
	assert.Equal(t, http.StatusNotFound, missing.Code)

	invalid := do(t, router, http.MethodPut, "/v1/items/1", "", []byte(`{"name":""}`))
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
}

func TestDeleteItemEndpoint(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	do(t, router, http.MethodPost, "/v1/items", "k0", []byte(`{"name":"widget"}`))

	first := do(t, router, http.MethodDelete, "/v1/items/1", "", nil)
	require.Equal(t, http.StatusNoContent, first.Code)
	assert.Empty(t, first.Body.String())

	// Absent ID still deletes cleanly.
	second := do(t, router, http.MethodDelete, "/v1/items/1", "", nil)
	assert.Equal(t, http.StatusNoContent, second.Code)

	gone := do(t, router, http.MethodGet, "/v1/items/1", "", nil)
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestListItemsPaginationWalk(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		rr := do(t, router, http.MethodPost, "/v1/items", "k-"+name,
			[]byte(`{"name":"`+name+`"}`))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	var collected []string
	target := "/v1/items?limit=2"
	for {
		rr := do(t, router, http.MethodGet, target, "", nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var page ListItemsResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
		for _, it := range page.Items {
			collected = append(collected, it.Name)
		}
		if page.NextCursor == nil {
			break
		}
		target = "/v1/items?limit=2&cursor=" + *page.NextCursor
	}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, collected)
}

func TestListItemsEmptyCollection(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	rr := do(t, router, http.MethodGet, "/v1/items", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"items":[],"next_cursor":null}`, rr.Body.String())
}

func TestListItemsLimitHandling(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	for _, name := range []string{"a", "b", "c"} {
		do(t, router, http.MethodPost, "/v1/items", "k-"+name, []byte(`{"name":"`+name+`"}`))
	}

	one := do(t, router, http.MethodGet, "/v1/items?limit=1", "", nil)
	var page ListItemsResponse
	require.NoError(t, json.Unmarshal(one.Body.Bytes(), &page))
	assert.Len(t, page.Items, 1)
	assert.NotNil(t, page.NextCursor)

	// A zero limit clamps to 1, same as any out-of-range value.
	zero := do(t, router, http.MethodGet, "/v1/items?limit=0", "", nil)
	require.Equal(t, http.StatusOK, zero.Code)
	var clamped ListItemsResponse
	require.NoError(t, json.Unmarshal(zero.Body.Bytes(), &clamped))
	assert.Len(t, clamped.Items, 1)
	assert.NotNil(t, clamped.NextCursor)

	// A huge limit is clamped, not rejected.
	big := do(t, router, http.MethodGet, "/v1/items?limit=100000", "", nil)
	assert.Equal(t, http.StatusOK, big.Code)

	bad := do(t, router, http.MethodGet, "/v1/items?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestListItemsInvalidCursor(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	rr := do(t, router, http.MethodGet, "/v1/items?cursor=%21%21not-base64%21%21", "", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_ARGUMENT", envelopeCode(t, rr))
}
