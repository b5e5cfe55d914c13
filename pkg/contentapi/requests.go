package contentapi

import (
	"io"

	"github.com/google/uuid"
)

// Request/response DTOs

// CreateItemRequest contains parameters for creating a content item.
type CreateItemRequest struct {
	Body map[string]any
}

// UpdateItemRequest contains parameters for replacing an item's body.
// ExpectedVersion is the version the caller last observed.
type UpdateItemRequest struct {
	ID              uuid.UUID
	ExpectedVersion int64
	Body            map[string]any
}

// AttachMediaRequest attaches an already-uploaded blob to an item.
type AttachMediaRequest struct {
	ID              uuid.UUID
	ExpectedVersion int64
	Key             string
	ContentType     string
	Size            int64
}

// UploadMediaRequest uploads a blob and attaches it in one call. The blob
// key is generated by the service.
type UploadMediaRequest struct {
	ID              uuid.UUID
	ExpectedVersion int64
	ContentType     string
	Reader          io.Reader
}

// ListItemsRequest contains pagination parameters for listing items.
// Limit <= 0 selects the service default; Cursor is an opaque token from a
// prior page.
type ListItemsRequest struct {
	Limit  int
	Cursor string
}

// ItemPage is one page of a listing. NextCursor is empty on the last page.
type ItemPage struct {
	Items      []*ContentItem
	NextCursor string
}
