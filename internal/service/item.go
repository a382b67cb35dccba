// Package service implements the todo item use cases on top of a store.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/todoapi/internal/model"
	"github.com/vyrodovalexey/todoapi/internal/store"
)

// Result kinds returned by ItemService. Every error returned by the service
// wraps exactly one of these.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidIdentifier = errors.New("invalid item identifier")
	ErrNotFound          = errors.New("item not found")
	ErrStorageFailure    = errors.New("storage failure")
)

// Publisher receives an event after every committed mutation.
type Publisher interface {
	Publish(event model.ItemEvent)
}

// ItemService validates requests and translates them into store calls.
type ItemService struct {
	store     store.Store
	publisher Publisher
	logger    *zap.Logger
}

// NewItemService creates a new ItemService. publisher may be nil.
func NewItemService(s store.Store, publisher Publisher, logger *zap.Logger) *ItemService {
	return &ItemService{
		store:     s,
		publisher: publisher,
		logger:    logger,
	}
}

// Create stores a new incomplete item with the given title.
func (s *ItemService) Create(ctx context.Context, title string) (*model.Item, error) {
	if err := model.ValidateTitle(title); err != nil {
		s.logger.Debug("create rejected", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	created, err := s.store.Insert(ctx, &model.Item{Title: title, Completed: false})
	if err != nil {
		return nil, s.storeError("create item", err)
	}

	s.publish(model.EventTypeItemCreated, *created)

	return created, nil
}

// List returns every stored item. An empty store yields an empty slice.
func (s *ItemService) List(ctx context.Context) ([]model.Item, error) {
	items, err := s.store.List(ctx)
	if err != nil {
		return nil, s.storeError("list items", err)
	}

	if items == nil {
		items = []model.Item{}
	}

	return items, nil
}

// Get returns the item with the given id.
func (s *ItemService) Get(ctx context.Context, id string) (*model.Item, error) {
	if err := s.validateID(id); err != nil {
		return nil, err
	}

	item, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, s.storeError("get item", err)
	}

	return item, nil
}

// Update replaces title and completed of an existing item.
func (s *ItemService) Update(ctx context.Context, id, title string, completed bool) (*model.Item, error) {
	if err := s.validateID(id); err != nil {
		return nil, err
	}

	if err := model.ValidateTitle(title); err != nil {
		s.logger.Debug("update rejected", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	updated, err := s.store.Replace(ctx, id, &model.Item{Title: title, Completed: completed})
	if err != nil {
		return nil, s.storeError("update item", err)
	}

	s.publish(model.EventTypeItemUpdated, *updated)

	return updated, nil
}

// Delete removes the item with the given id.
func (s *ItemService) Delete(ctx context.Context, id string) error {
	if err := s.validateID(id); err != nil {
		return err
	}

	if err := s.store.Remove(ctx, id); err != nil {
		return s.storeError("delete item", err)
	}

	s.publish(model.EventTypeItemDeleted, model.Item{ID: id})

	return nil
}

func (s *ItemService) validateID(id string) error {
	if err := s.store.ValidateID(id); err != nil {
		s.logger.Debug("malformed item id", zap.String("id", id))
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}

// storeError maps a store error onto one of the service result kinds.
func (s *ItemService) storeError(operation string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, ErrNotFound)
	case errors.Is(err, store.ErrInvalidID):
		return fmt.Errorf("%s: %w", operation, ErrInvalidIdentifier)
	default:
		s.logger.Error("store operation failed", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("%s: %w: %w", operation, ErrStorageFailure, err)
	}
}

func (s *ItemService) publish(eventType string, item model.Item) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(model.NewItemEvent(eventType, item))
}
