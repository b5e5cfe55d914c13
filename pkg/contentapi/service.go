package contentapi

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service orchestrates item lifecycle across the record store and the blob
// store. It is stateless between calls: running multiple instances requires
// no coordination beyond what the stores provide.
type Service interface {
	// CreateItem assigns a fresh id and writes the item at version 1. Id
	// collisions trigger regeneration a bounded number of times before
	// ErrGeneratorExhausted is surfaced.
	CreateItem(ctx context.Context, req CreateItemRequest) (*ContentItem, error)

	// GetItem returns the item, or ErrItemNotFound if absent or tombstoned.
	GetItem(ctx context.Context, id uuid.UUID) (*ContentItem, error)

	// UpdateItem replaces the body via compare-and-swap. Of N concurrent
	// updates from the same expected version exactly one wins; the rest
	// observe ErrVersionConflict and must re-read.
	UpdateItem(ctx context.Context, req UpdateItemRequest) (*ContentItem, error)

	// DeleteItem tombstones the item. Idempotent: deleting an absent or
	// already-tombstoned id succeeds. Referenced blobs are left for the
	// external reaper.
	DeleteItem(ctx context.Context, id uuid.UUID) error

	// AttachMedia verifies the blob exists, then appends a media ref via
	// the same compare-and-swap as UpdateItem.
	AttachMedia(ctx context.Context, req AttachMediaRequest) (*ContentItem, error)

	// UploadMedia stores the blob under a generated key and attaches it.
	UploadMedia(ctx context.Context, req UploadMediaRequest) (*ContentItem, error)

	// DownloadMedia streams a blob the item references. A key the item does
	// not reference is ErrInvalidInput.
	DownloadMedia(ctx context.Context, id uuid.UUID, key string) (io.ReadCloser, *MediaRef, error)

	// ListItems returns a page of live items in id order. A cursor taken
	// before concurrent creates land near the page boundary may overlap or
	// skip at most one item there; that weak-consistency tradeoff is
	// accepted rather than locked away.
	ListItems(ctx context.Context, req ListItemsRequest) (*ItemPage, error)
}
