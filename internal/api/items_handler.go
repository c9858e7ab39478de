package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tessellate/items-api/internal/api/shared"
	"github.com/tessellate/items-api/internal/domain"
	"github.com/tessellate/items-api/internal/idempotency"
	"github.com/tessellate/items-api/internal/pagination"
	"github.com/tessellate/items-api/internal/service"
	"github.com/tessellate/items-api/internal/store"
)

// IdempotencyKeyHeader carries the client-chosen key that makes creates
// safely retryable. It is mandatory on POST.
const IdempotencyKeyHeader = "Idempotency-Key"

// maxRequestBodyBytes caps request bodies well above any valid payload.
const maxRequestBodyBytes = 1 << 20

// itemsCollectionPath is the canonical path used for ledger route keys.
// The key is fixed rather than read from the request URL so spelling
// variants of the same route ("/v1/items" vs "/v1/items/") share one
// idempotency scope.
const itemsCollectionPath = "/v1/items"

// ItemHandler handles the /v1/items endpoints.
type ItemHandler struct {
	service  *service.ItemService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewItemHandler creates an ItemHandler with its dependencies.
func NewItemHandler(svc *service.ItemService, log *slog.Logger) *ItemHandler {
	if svc == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("item service cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &ItemHandler{
		service:  svc,
		validate: validator.New(),
		logger:   log.With(slog.String("component", "item_handler")),
	}
}

// CreateItem handles POST /v1/items. The Idempotency-Key header is
// required; the raw body bytes (not the decoded struct) feed the
// idempotency hash so the replay decision sees exactly what the client
// sent.
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.GetPrincipal(r.Context())
	if !ok {
		shared.RespondWithError(w, r, domain.CodeUnauthorized, "authentication required")
		return
	}

	idemKey := r.Header.Get(IdempotencyKeyHeader)
	if idemKey == "" {
		shared.RespondWithError(w, r, domain.CodeInvalidArgument, "Idempotency-Key header is required")
		return
	}

	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		shared.RespondWithError(w, r, domain.CodeInvalidArgument, "could not read request body")
		return
	}

	var req CreateItemRequest
	if err := json.Unmarshal(rawBody, &req); err != nil {
		shared.RespondWithError(w, r, domain.CodeInvalidArgument, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RespondWithError(w, r, domain.CodeInvalidArgument, "name must be between 1 and 200 characters")
		return
	}

	routeKey := idempotency.RouteKey(http.MethodPost, itemsCollectionPath)
	outcome, err := h.service.CreateItem(
		r.Context(), principal.Subject, routeKey, idemKey, rawBody, req.Name)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	shared.RespondWithRawJSON(w, outcome.StatusCode, outcome.Body)
}

// GetItem handles GET /v1/items/{id}.
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewItemResponse(item))
}

// UpdateItem handles PUT /v1/items/{id}.
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var req UpdateItemRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		shared.RespondWithError(w, r, domain.CodeInvalidArgument, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RespondWithError(w, r, domain.CodeInvalidArgument, "name must be between 1 and 200 characters")
		return
	}

	item, err := h.service.UpdateItem(r.Context(), id, req.Name)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, NewItemResponse(item))
}

// DeleteItem handles DELETE /v1/items/{id}. Deletion is idempotent:
// deleting an absent ID still returns 204.
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListItems handles GET /v1/items. Out-of-range limits are clamped, not
// rejected; a malformed cursor is rejected with INVALID_ARGUMENT.
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	params := store.ListParams{Limit: store.DefaultListLimit}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			shared.RespondWithError(w, r, domain.CodeInvalidArgument, "limit must be an integer")
			return
		}
		params.Limit = store.ClampListLimit(limit)
	}

	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor, err := pagination.Decode(raw)
		if err != nil {
			HandleError(w, r, err)
			return
		}
		params.After = &cursor
	}

	page, err := h.service.ListItems(r.Context(), params)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	resp := ListItemsResponse{Items: make([]ItemResponse, 0, len(page.Items))}
	for _, item := range page.Items {
		resp.Items = append(resp.Items, NewItemResponse(item))
	}
	if page.NextCursor != nil {
		encoded := pagination.Encode(page.NextCursor.CreatedAt, page.NextCursor.ID)
		resp.NextCursor = &encoded
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// itemID extracts and validates the {id} route parameter. On failure it
// writes the error response and returns ok=false.
func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		shared.RespondWithError(w, r, domain.CodeInvalidArgument, "item id must be a positive integer")
		return 0, false
	}
	return id, true
}
