package contentapi

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// RecordStore is the structured-record side of the two-store split: one
// record per item id, with a conditional-write primitive. Operations are
// independent per id; the only serialization point is CompareAndSwap on a
// single record. A successful CompareAndSwap must be visible to subsequent
// Get and List calls from any caller.
type RecordStore interface {
	// Put writes a brand-new record. It fails with ErrItemExists if the id
	// is already present, tombstoned or not; that is how generator
	// collisions are detected.
	Put(ctx context.Context, item *ContentItem) error

	// Get returns the record for id, including tombstoned records (the
	// service distinguishes them via DeletedAt). Absent ids yield
	// ErrItemNotFound.
	Get(ctx context.Context, id uuid.UUID) (*ContentItem, error)

	// CompareAndSwap atomically replaces the record if its stored version
	// equals expectedVersion and it is not tombstoned. Mismatched versions
	// yield ErrVersionConflict; absent or tombstoned records yield
	// ErrItemNotFound. No partial update is ever applied.
	CompareAndSwap(ctx context.Context, expectedVersion int64, item *ContentItem) error

	// List returns up to limit non-tombstoned records in ascending id
	// order, strictly after afterID (empty string means from the start).
	List(ctx context.Context, afterID string, limit int) ([]*ContentItem, error)
}

// BlobStore is the binary side of the two-store split: arbitrary objects
// addressed by caller-supplied key, referenced but not owned by records.
type BlobStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Meta(ctx context.Context, key string) (*BlobMeta, error)
}

// BlobMeta describes an object in blob storage.
type BlobMeta struct {
	Key         string
	Size        int64
	ContentType string
	UpdatedAt   time.Time
}

// IDGenerator produces item identifiers that are unique with overwhelming
// probability and lexicographically sortable by generation time.
type IDGenerator interface {
	NewID() (uuid.UUID, error)
}
