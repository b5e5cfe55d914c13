package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/content-api/pkg/contentapi"
)

// Store implements contentapi.RecordStore in memory. Records are copied on
// the way in and out so callers can never mutate stored state; the mutex
// makes CompareAndSwap atomic regardless of how many callers target the
// same id.
type Store struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*contentapi.ContentItem
}

// New creates a new in-memory record store
func New() contentapi.RecordStore {
	return &Store{
		items: make(map[uuid.UUID]*contentapi.ContentItem),
	}
}

func (s *Store) Put(ctx context.Context, item *contentapi.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return contentapi.ErrItemExists
	}
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*contentapi.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists {
		return nil, contentapi.ErrItemNotFound
	}
	return item.Clone(), nil
}

func (s *Store) CompareAndSwap(ctx context.Context, expectedVersion int64, item *contentapi.ContentItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.items[item.ID]
	if !exists || cur.Deleted() {
		return contentapi.ErrItemNotFound
	}
	if cur.Version != expectedVersion {
		return contentapi.ErrVersionConflict
	}
	s.items[item.ID] = item.Clone()
	return nil
}

func (s *Store) List(ctx context.Context, afterID string, limit int) ([]*contentapi.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*contentapi.ContentItem
	for _, item := range s.items {
		if item.Deleted() {
			continue
		}
		if afterID != "" && item.ID.String() <= afterID {
			continue
		}
		result = append(result, item.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
