package contentapi_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-api/pkg/contentapi"
	repomemory "github.com/tendant/content-api/pkg/contentapi/repo/memory"
	memorystorage "github.com/tendant/content-api/pkg/contentapi/storage/memory"
)

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []contentapi.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []contentapi.Option{},
			expectError: true,
		},
		{
			name: "with record store should succeed",
			options: []contentapi.Option{
				contentapi.WithRecordStore(repomemory.New()),
			},
			expectError: false,
		},
		{
			name: "with record and blob stores should succeed",
			options: []contentapi.Option{
				contentapi.WithRecordStore(repomemory.New()),
				contentapi.WithBlobStore(memorystorage.New()),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := contentapi.New(tt.options...)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func setupTestService(t *testing.T, opts ...contentapi.Option) (contentapi.Service, contentapi.BlobStore) {
	t.Helper()

	blobs := memorystorage.New()
	options := append([]contentapi.Option{
		contentapi.WithRecordStore(repomemory.New()),
		contentapi.WithBlobStore(blobs),
	}, opts...)

	svc, err := contentapi.New(options...)
	require.NoError(t, err)
	require.NotNil(t, svc)

	return svc, blobs
}

func TestCreateItem(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	t.Run("RoundTrip", func(t *testing.T) {
		body := map[string]any{"title": "hello", "count": float64(3)}

		created, err := svc.CreateItem(ctx, contentapi.CreateItemRequest{Body: body})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.Equal(t, int64(1), created.Version)
		assert.Equal(t, body, created.Body)
		assert.NotNil(t, created.MediaRefs)
		assert.Empty(t, created.MediaRefs)
		assert.False(t, created.CreatedAt.IsZero())
		assert.Equal(t, created.CreatedAt, created.UpdatedAt)

		got, err := svc.GetItem(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, body, got.Body)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("NilBody", func(t *testing.T) {
		_, err := svc.CreateItem(ctx, contentapi.CreateItemRequest{})
		assert.ErrorIs(t, err, contentapi.ErrInvalidInput)
	})
}

func TestGetItem_NotFound(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.GetItem(context.Background(), uuid.New())
	assert.ErrorIs(t, err, contentapi.ErrItemNotFound)
}

// TestItemLifecycle walks the full create/update/conflict/delete sequence.
func TestItemLifecycle(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	created, err := svc.CreateItem(ctx, contentapi.CreateItemRequest{
		Body: map[string]any{"title": "A"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), created.Version)

	updated, err := svc.UpdateItem(ctx, contentapi.UpdateItemRequest{
		ID:              created.ID,
		ExpectedVersion: 1,
		Body:            map[string]any{"title": "B"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, map[string]any{"title": "B"}, updated.Body)

	// Stale writer still holds version 1.
	_, err = svc.UpdateItem(ctx, contentapi.UpdateItemRequest{
		ID:              created.ID,
		ExpectedVersion: 1,
		Body:            map[string]any{"title": "C"},
	})
	assert.ErrorIs(t, err, contentapi.ErrVersionConflict)

	got, err := svc.GetItem(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "B"}, got.Body)

	require.NoError(t, svc.DeleteItem(ctx, created.ID))

	_, err = svc.GetItem(ctx, created.ID)
	assert.ErrorIs(t, err, contentapi.ErrItemNotFound)

	// Idempotent second delete.
	assert.NoError(t, svc.DeleteItem(ctx, created.ID))
}

func TestUpdateItem_Validation(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	created, err := svc.CreateItem(ctx, contentapi.CreateItemRequest{
		Body: map[string]any{"title": "A"},
	})
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, contentapi.UpdateItemRequest{
		ID:              created.ID,
		ExpectedVersion: 1,
	})
	assert.ErrorIs(t, err, contentapi.ErrInvalidInput)

	_, err = svc.UpdateItem(ctx, contentapi.UpdateItemRequest{
		ID:              created.ID,
		ExpectedVersion: 0,
		Body:            map[string]any{"title": "B"},
	})
	assert.ErrorIs(t, err, contentapi.ErrInvalidInput)

	_, err = svc.UpdateItem(ctx, contentapi.UpdateItemRequest{
		ID:              uuid.New(),
		ExpectedVersion: 1,
		Body:            map[string]any{"title": "B"},
	})
	assert.ErrorIs(t, err, contentapi.ErrItemNotFound)
}

// TestConcurrentUpdates races N writers holding the same base version;
// exactly one may win and the winner bumps the version by one.
func TestConcurrentUpdates(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	created, err := svc.CreateItem(ctx, contentapi.CreateItemRequest{
		Body: map[string]any{"n": float64(0)},
	})
	require.NoError(t, err)

	const writers = 16
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.UpdateItem(ctx, contentapi.UpdateItemRequest{
				ID:              created.ID,
				ExpectedVersion: 1,
				Body:            map[string]any{"n": float64(i)},
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, contentapi.ErrVersionConflict)
		}
	}
	assert.Equal(t, 1, wins)

	got, err := svc.GetItem(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestDeleteItem_AbsentID(t *testing.T) {
	svc, _ := setupTestService(t)
	assert.NoError(t, svc.DeleteItem(context.Background(), uuid.New()))
}

func TestDeleteItem_RetriesPastRacingUpdate(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	created, err := svc.CreateItem(ctx, contentapi.CreateItemRequest{
		Body: map[string]any{"title": "A"},
	})
	require.NoError(t, err)

	// Bump the version behind the delete's back; the tombstone CAS loop
	// re-reads and still lands.
	_, err = svc.UpdateItem(ctx, contentapi.UpdateItemRequest{
		ID:              created.ID,
		ExpectedVersion: 1,
		Body:            map[string]any{"title": "B"},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItem(ctx, created.ID))
	_, err = svc.GetItem(ctx, created.ID)
	assert.ErrorIs(t, err, contentapi.ErrItemNotFound)
}

func TestAttachMedia(t *testing.T) {
	svc, blobs := setupTestService(t)
	ctx := context.Background()

	created, err := svc.CreateItem(ctx, contentapi.CreateItemRequest{
		Body: map[string]any{"title": "gallery"},
	})
	require.NoError(t, err)

	t.Run("MissingBlob", func(t *testing.T) {
		_, err := svc.AttachMedia(ctx, contentapi.AttachMediaRequest{
			ID:              created.ID,
			ExpectedVersion: 1,
			Key:             "no/such/blob",
			ContentType:     "image/png",
			Size:            10,
		})
		assert.ErrorIs(t, err, contentapi.ErrInvalidInput)
	})

	t.Run("ExistingBlob", func(t *testing.T) {
		key := created.ID.String() + "/cover"
		require.NoError(t, blobs.Upload(ctx, key, bytes.NewReader([]byte("png bytes")), "image/png"))

		item, err := svc.AttachMedia(ctx, contentapi.AttachMediaRequest{
			ID:              created.ID,
			ExpectedVersion: 1,
			Key:             key,
			ContentType:     "image/png",
			Size:            9,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), item.Version)
		require.Len(t, item.MediaRefs, 1)
		assert.Equal(t, key, item.MediaRefs[0].Key)
		assert.Equal(t, "image/png", item.MediaRefs[0].ContentType)
		assert.Equal(t, int64(9), item.MediaRefs[0].Size)
	})

	t.Run("EmptyKey", func(t *testing.T) {
		_, err := svc.AttachMedia(ctx, contentapi.AttachMediaRequest{
			ID:              created.ID,
			ExpectedVersion: 2,
		})
		assert.ErrorIs(t, err, contentapi.ErrInvalidInput)
	})
}

func TestUploadAndDownloadMedia(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	created, err := svc.CreateItem(ctx, contentapi.CreateItemRequest{
		Body: map[string]any{"title": "doc"},
	})
	require.NoError(t, err)

	payload := []byte("the media payload")
	item, err := svc.UploadMedia(ctx, contentapi.UploadMediaRequest{
		ID:              created.ID,
		ExpectedVersion: 1,
		ContentType:     "text/plain",
		Reader:          bytes.NewReader(payload),
	})
	require.NoError(t, err)
	require.Len(t, item.MediaRefs, 1)

	ref := item.MediaRefs[0]
	assert.Equal(t, int64(len(payload)), ref.Size)
	assert.Equal(t, "text/plain", ref.ContentType)

	rc, gotRef, err := svc.DownloadMedia(ctx, created.ID, ref.Key)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, ref, *gotRef)

	_, _, err = svc.DownloadMedia(ctx, created.ID, "unreferenced/key")
	assert.ErrorIs(t, err, contentapi.ErrInvalidInput)
}

func TestListItems(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	var createdIDs []string
	for i := 0; i < 25; i++ {
		item, err := svc.CreateItem(ctx, contentapi.CreateItemRequest{
			Body: map[string]any{"n": float64(i)},
		})
		require.NoError(t, err)
		createdIDs = append(createdIDs, item.ID.String())
	}

	// Tombstoned items stay out of every page.
	victim, err := uuid.Parse(createdIDs[7])
	require.NoError(t, err)
	require.NoError(t, svc.DeleteItem(ctx, victim))

	var seen []string
	cursor := ""
	pages := 0
	for {
		page, err := svc.ListItems(ctx, contentapi.ListItemsRequest{Limit: 10, Cursor: cursor})
		require.NoError(t, err)
		require.LessOrEqual(t, len(page.Items), 10)

		for _, item := range page.Items {
			seen = append(seen, item.ID.String())
		}
		pages++
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 24)
	assert.True(t, sort.StringsAreSorted(seen), "pages must come back in ascending id order")
	assert.NotContains(t, seen, createdIDs[7])

	want := make(map[string]bool)
	for i, id := range createdIDs {
		if i != 7 {
			want[id] = true
		}
	}
	for _, id := range seen {
		assert.True(t, want[id], "unexpected id %s in listing", id)
	}
}

func TestListItems_InvalidCursor(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.ListItems(context.Background(), contentapi.ListItemsRequest{Cursor: "!!!"})
	assert.ErrorIs(t, err, contentapi.ErrInvalidInput)
}

// fixedIDGenerator always produces the same id, simulating a defective
// generator.
type fixedIDGenerator struct {
	id uuid.UUID
}

func (g fixedIDGenerator) NewID() (uuid.UUID, error) {
	return g.id, nil
}

func TestCreateItem_GeneratorExhausted(t *testing.T) {
	id, err := uuid.NewV7()
	require.NoError(t, err)

	svc, _ := setupTestService(t, contentapi.WithIDGenerator(fixedIDGenerator{id: id}))
	ctx := context.Background()

	first, err := svc.CreateItem(ctx, contentapi.CreateItemRequest{
		Body: map[string]any{"title": "first"},
	})
	require.NoError(t, err)
	require.Equal(t, id, first.ID)

	_, err = svc.CreateItem(ctx, contentapi.CreateItemRequest{
		Body: map[string]any{"title": "second"},
	})
	assert.ErrorIs(t, err, contentapi.ErrGeneratorExhausted)
}

func TestSortableIDs(t *testing.T) {
	gen := contentapi.NewUUIDv7Generator()

	var ids []string
	for i := 0; i < 100; i++ {
		id, err := gen.NewID()
		require.NoError(t, err)
		ids = append(ids, id.String())
	}

	assert.True(t, sort.StringsAreSorted(ids), "sequentially generated ids must sort by generation time")
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{contentapi.ErrInvalidInput, "invalid_input", 400},
		{contentapi.ErrItemNotFound, "not_found", 404},
		{contentapi.ErrVersionConflict, "version_conflict", 409},
		{contentapi.ErrItemExists, "version_conflict", 409},
		{contentapi.ErrStoreUnavailable, "store_unavailable", 503},
		{contentapi.ErrStoreTimeout, "timeout", 504},
		{contentapi.ErrGeneratorExhausted, "generator_exhausted", 500},
		{fmt.Errorf("mystery failure"), "internal", 500},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			wrapped := &contentapi.ItemError{Op: "test", Err: tt.err}
			assert.Equal(t, tt.code, contentapi.ErrorCode(wrapped))
			assert.Equal(t, tt.status, contentapi.HTTPStatus(wrapped))
		})
	}

	assert.Equal(t, "internal error", contentapi.SafeMessage(fmt.Errorf("secret adapter detail")))
	assert.Equal(t, contentapi.ErrItemNotFound.Error(),
		contentapi.SafeMessage(fmt.Errorf("wrapped: %w", contentapi.ErrItemNotFound)))
}
