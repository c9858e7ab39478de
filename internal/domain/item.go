// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"time"
	"unicode/utf8"
)

// Name length bounds for an Item.
const (
	ItemNameMinLen = 1
	ItemNameMaxLen = 200
)

// Common validation errors for Item
var (
	ErrEmptyItemName   = errors.New("item name cannot be empty")
	ErrItemNameTooLong = errors.New("item name exceeds maximum length")
)

// Item is the single resource exposed by the API. The ID is assigned by
// the store as a monotonic ordinal; (CreatedAt, ID) forms the total order
// used for cursor pagination, with ID breaking timestamp ties.
type Item struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewItem creates a new Item with the given name and the current UTC time.
// The ID is left zero until the store assigns it.
// Returns an error if validation fails.
func NewItem(name string) (*Item, error) {
	item := &Item{
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the Item has valid data.
// Returns an error if any field fails validation.
func (i *Item) Validate() error {
	if err := ValidateItemName(i.Name); err != nil {
		return err
	}

	return nil
}

// Rename replaces the item's name after validating it. CreatedAt and ID
// are immutable once the item exists.
func (i *Item) Rename(name string) error {
	if err := ValidateItemName(name); err != nil {
		return err
	}
	i.Name = name
	return nil
}

// ValidateItemName checks that a name satisfies the Item length bounds.
func ValidateItemName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < ItemNameMinLen {
		return ErrEmptyItemName
	}
	if n > ItemNameMaxLen {
		return ErrItemNameTooLong
	}
	return nil
}
