package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/todoapi/internal/model"
)

// MemoryStore implements Store interface with in-memory storage.
// Items are kept in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]model.Item
	order []string
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]model.Item),
	}
}

// ValidateID accepts canonical UUID strings only: lowercase and hyphenated,
// exactly as Insert assigns them.
func (s *MemoryStore) ValidateID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return ErrInvalidID
	}
	return nil
}

// List returns all items from the store.
func (s *MemoryStore) List(ctx context.Context) ([]model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list items: %w", ctx.Err())
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.Item, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, s.items[id])
	}

	return items, nil
}

// Get retrieves an item by its ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("get item: %w", ctx.Err())
	default:
	}

	if err := s.ValidateID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists {
		return nil, ErrNotFound
	}

	return &item, nil
}

// Insert adds a new item to the store and returns the stored item with generated ID.
func (s *MemoryStore) Insert(ctx context.Context, item *model.Item) (*model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("insert item: %w", ctx.Err())
	default:
	}

	if item == nil {
		return nil, fmt.Errorf("insert item: %w", ErrNilItem)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	newItem := model.Item{
		ID:        uuid.New().String(),
		Title:     item.Title,
		Completed: item.Completed,
	}

	s.items[newItem.ID] = newItem
	s.order = append(s.order, newItem.ID)

	return &newItem, nil
}

// Replace overwrites an existing item in the store.
func (s *MemoryStore) Replace(ctx context.Context, id string, item *model.Item) (*model.Item, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("replace item: %w", ctx.Err())
	default:
	}

	if err := s.ValidateID(id); err != nil {
		return nil, err
	}

	if item == nil {
		return nil, fmt.Errorf("replace item: %w", ErrNilItem)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return nil, ErrNotFound
	}

	updatedItem := model.Item{
		ID:        id,
		Title:     item.Title,
		Completed: item.Completed,
	}

	s.items[id] = updatedItem

	return &updatedItem, nil
}

// Remove deletes an item from the store by its ID.
func (s *MemoryStore) Remove(ctx context.Context, id string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("remove item: %w", ctx.Err())
	default:
	}

	if err := s.ValidateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return ErrNotFound
	}

	delete(s.items, id)
	for i, key := range s.order {
		if key == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	return nil
}
