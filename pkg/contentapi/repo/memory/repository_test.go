package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-api/pkg/contentapi"
	"github.com/tendant/content-api/pkg/contentapi/repo/memory"
)

func newItem(t *testing.T, version int64) *contentapi.ContentItem {
	t.Helper()

	id, err := uuid.NewV7()
	require.NoError(t, err)

	now := time.Now().UTC()
	return &contentapi.ContentItem{
		ID:        id,
		Body:      map[string]any{"title": "test"},
		MediaRefs: []contentapi.MediaRef{},
		Version:   version,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPut(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	item := newItem(t, 1)
	require.NoError(t, store.Put(ctx, item))

	t.Run("DuplicateID", func(t *testing.T) {
		assert.ErrorIs(t, store.Put(ctx, item), contentapi.ErrItemExists)
	})

	t.Run("StoredCopyIsIsolated", func(t *testing.T) {
		item.Body["title"] = "mutated after put"

		got, err := store.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "test", got.Body["title"])

		got.Body["title"] = "mutated after get"
		again, err := store.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "test", again.Body["title"])
	})
}

func TestGet_NotFound(t *testing.T) {
	store := memory.New()

	_, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, contentapi.ErrItemNotFound)
}

func TestCompareAndSwap(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	item := newItem(t, 1)
	require.NoError(t, store.Put(ctx, item))

	t.Run("MatchingVersion", func(t *testing.T) {
		next := item.Clone()
		next.Version = 2
		next.Body = map[string]any{"title": "updated"}

		require.NoError(t, store.CompareAndSwap(ctx, 1, next))

		got, err := store.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		assert.Equal(t, "updated", got.Body["title"])
	})

	t.Run("StaleVersion", func(t *testing.T) {
		next := item.Clone()
		next.Version = 2
		assert.ErrorIs(t, store.CompareAndSwap(ctx, 1, next), contentapi.ErrVersionConflict)
	})

	t.Run("AbsentID", func(t *testing.T) {
		missing := newItem(t, 1)
		assert.ErrorIs(t, store.CompareAndSwap(ctx, 1, missing), contentapi.ErrItemNotFound)
	})

	t.Run("TombstonedRecord", func(t *testing.T) {
		cur, err := store.Get(ctx, item.ID)
		require.NoError(t, err)

		tomb := cur.Clone()
		now := time.Now().UTC()
		tomb.DeletedAt = &now
		tomb.Version = cur.Version + 1
		require.NoError(t, store.CompareAndSwap(ctx, cur.Version, tomb))

		next := tomb.Clone()
		next.Version = tomb.Version + 1
		assert.ErrorIs(t, store.CompareAndSwap(ctx, tomb.Version, next), contentapi.ErrItemNotFound)
	})
}

func TestGet_ReturnsTombstonedRecord(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	item := newItem(t, 1)
	now := time.Now().UTC()
	item.DeletedAt = &now
	require.NoError(t, store.Put(ctx, item))

	got, err := store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted())
}

func TestList(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		item := newItem(t, 1)
		require.NoError(t, store.Put(ctx, item))
		ids = append(ids, item.ID.String())
	}

	tomb := newItem(t, 1)
	now := time.Now().UTC()
	tomb.DeletedAt = &now
	require.NoError(t, store.Put(ctx, tomb))

	t.Run("AscendingOrder", func(t *testing.T) {
		items, err := store.List(ctx, "", 10)
		require.NoError(t, err)
		require.Len(t, items, 5)
		for i, item := range items {
			assert.Equal(t, ids[i], item.ID.String())
		}
	})

	t.Run("AfterCursor", func(t *testing.T) {
		items, err := store.List(ctx, ids[2], 10)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, ids[3], items[0].ID.String())
		assert.Equal(t, ids[4], items[1].ID.String())
	})

	t.Run("Limit", func(t *testing.T) {
		items, err := store.List(ctx, "", 2)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, ids[0], items[0].ID.String())
	})

	t.Run("PastTheEnd", func(t *testing.T) {
		items, err := store.List(ctx, ids[4], 10)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}
