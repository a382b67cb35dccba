// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"strings"
	"time"
)

// Validation errors for Item.
var (
	ErrEmptyTitle   = errors.New("title cannot be empty")
	ErrTitleTooLong = errors.New("title cannot exceed 255 characters")
)

// MaxTitleLength is the maximum accepted title length in bytes.
const MaxTitleLength = 255

// Item represents a todo item.
type Item struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Validate checks if the Item has valid field values.
func (i *Item) Validate() error {
	return ValidateTitle(i.Title)
}

// ValidateTitle checks that title is non-blank and within MaxTitleLength.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}

	if len(title) > MaxTitleLength {
		return ErrTitleTooLong
	}

	return nil
}

// CreateItemRequest is the payload accepted by POST /todos.
// Completed is decoded but ignored: new items always start incomplete.
type CreateItemRequest struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed,omitempty"`
}

// UpdateItemRequest is the payload accepted by PUT /todos/{id}.
// Both fields replace the stored values; an omitted completed means false.
type UpdateItemRequest struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ItemEvent is pushed to websocket subscribers after a successful mutation.
type ItemEvent struct {
	Type      string    `json:"type"`
	Item      *Item     `json:"item,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Item event types.
const (
	EventTypeItemCreated = "item_created"
	EventTypeItemUpdated = "item_updated"
	EventTypeItemDeleted = "item_deleted"
)

// NewItemEvent creates an event of the given type carrying a copy of item.
func NewItemEvent(eventType string, item Item) ItemEvent {
	return ItemEvent{
		Type:      eventType,
		Item:      &item,
		Timestamp: time.Now().UTC(),
	}
}
