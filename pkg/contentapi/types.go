package contentapi

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ContentItem is a logical content entity: an opaque structured body plus
// references to binary media held in a BlobStore.
//
// Version is the optimistic-concurrency token: it starts at 1 on creation and
// increases by exactly one per successful mutation. Every mutation is a
// compare-and-swap against the version the caller last observed.
type ContentItem struct {
	ID        uuid.UUID      `json:"id"`
	Body      map[string]any `json:"body"`
	MediaRefs []MediaRef     `json:"mediaRefs"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`

	// DeletedAt marks the item as tombstoned. Tombstones stay in the record
	// store so deletes are idempotent and ids are never reused; they are not
	// exposed on the wire.
	DeletedAt *time.Time `json:"-"`
}

// MediaRef points at a blob stored in a BlobStore. The blob is referenced,
// not owned: reclamation of unreferenced blobs is an external sweeper's job.
type MediaRef struct {
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Deleted reports whether the item is tombstoned.
func (c *ContentItem) Deleted() bool {
	return c.DeletedAt != nil
}

// Clone returns a deep-enough copy for store implementations that hand out
// records: top-level body keys and the media ref slice are copied so callers
// cannot mutate stored state.
func (c *ContentItem) Clone() *ContentItem {
	cp := *c
	if c.Body != nil {
		cp.Body = maps.Clone(c.Body)
	}
	cp.MediaRefs = slices.Clone(c.MediaRefs)
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}
