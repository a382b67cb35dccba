package store

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vyrodovalexey/todoapi/internal/model"
)

// CachedStore is a read-through LRU cache in front of another Store.
//
// Writers hold mu exclusively across the backend call and the cache update;
// readers hold it shared across a miss and the fill. A Get therefore never
// caches a value older than a Replace or Remove that already returned.
type CachedStore struct {
	next  Store
	mu    sync.RWMutex
	cache *lru.Cache[string, model.Item]
}

// NewCachedStore wraps next with a cache holding up to size items.
func NewCachedStore(next Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, model.Item](size)
	if err != nil {
		return nil, fmt.Errorf("create item cache: %w", err)
	}

	return &CachedStore{
		next:  next,
		cache: cache,
	}, nil
}

// ValidateID delegates to the wrapped store.
func (s *CachedStore) ValidateID(id string) error {
	return s.next.ValidateID(id)
}

// List always reads through to the wrapped store.
func (s *CachedStore) List(ctx context.Context) ([]model.Item, error) {
	return s.next.List(ctx)
}

// Get serves from the cache when possible.
func (s *CachedStore) Get(ctx context.Context, id string) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, ok := s.cache.Get(id); ok {
		return &item, nil
	}

	item, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Add(id, *item)

	return item, nil
}

// Insert stores the item and caches the result.
func (s *CachedStore) Insert(ctx context.Context, item *model.Item) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.next.Insert(ctx, item)
	if err != nil {
		return nil, err
	}

	s.cache.Add(created.ID, *created)

	return created, nil
}

// Replace updates the backend and refreshes the cached copy.
func (s *CachedStore) Replace(ctx context.Context, id string, item *model.Item) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.next.Replace(ctx, id, item)
	if err != nil {
		// Backend state is unknown after a failure.
		s.cache.Remove(id)
		return nil, err
	}

	s.cache.Add(id, *updated)

	return updated, nil
}

// Remove deletes from the backend and evicts the cached copy.
func (s *CachedStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.next.Remove(ctx, id)
	s.cache.Remove(id)

	return err
}

// Ping delegates to the wrapped store.
func (s *CachedStore) Ping(ctx context.Context) error {
	return Ping(ctx, s.next)
}

// Len returns the number of cached items.
func (s *CachedStore) Len() int {
	return s.cache.Len()
}
