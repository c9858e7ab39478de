package api

import (
	"time"

	"github.com/tessellate/items-api/internal/domain"
)

// CreateItemRequest is the payload for creating an item.
type CreateItemRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// UpdateItemRequest is the payload for replacing an item's name.
type UpdateItemRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

// ItemResponse is the canonical representation of an item.
type ItemResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewItemResponse converts a domain item into its response form.
func NewItemResponse(item *domain.Item) ItemResponse {
	return ItemResponse{
		ID:        item.ID,
		Name:      item.Name,
		CreatedAt: item.CreatedAt,
	}
}

// ListItemsResponse is one page of items. NextCursor is null on the final
// page; clients pass it back verbatim to continue the walk.
type ListItemsResponse struct {
	Items      []ItemResponse `json:"items"`
	NextCursor *string        `json:"next_cursor"`
}
