// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/vyrodovalexey/todoapi/internal/model"
)

// Store errors.
var (
	ErrNotFound       = errors.New("item not found")
	ErrInvalidID      = errors.New("invalid item ID")
	ErrNilItem        = errors.New("item cannot be nil")
	ErrStorageFailure = errors.New("storage failure")
)

// Store defines the interface for item storage operations.
// Implementations return copies; callers never share state with the store.
type Store interface {
	// ValidateID reports ErrInvalidID if id cannot be a key of this store.
	ValidateID(id string) error

	// List returns all items in store order. It returns an empty slice when
	// the store holds no items.
	List(ctx context.Context) ([]model.Item, error)

	// Get retrieves an item by its ID.
	Get(ctx context.Context, id string) (*model.Item, error)

	// Insert stores a new item under a freshly assigned ID and returns the stored item.
	Insert(ctx context.Context, item *model.Item) (*model.Item, error)

	// Replace overwrites title and completed of an existing item. The ID never changes.
	Replace(ctx context.Context, id string, item *model.Item) (*model.Item, error)

	// Remove deletes an item by its ID.
	Remove(ctx context.Context, id string) error
}

// Pinger is implemented by stores that can report backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks s if it implements Pinger. Stores without a backend are always reachable.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
