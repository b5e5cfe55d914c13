package contentapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

const (
	// createAttempts bounds id regeneration on Put collisions. Collisions
	// should essentially never happen; hitting the bound means the
	// generator is defective or the id space is near saturation.
	createAttempts = 3

	// deleteAttempts bounds the tombstone CAS loop under racing writers.
	deleteAttempts = 3

	defaultPageSize = 50
	defaultMaxPage  = 200
)

var errNoBlobStore = errors.New("no blob store configured")

// service implements the Service interface
type service struct {
	records  RecordStore
	blobs    BlobStore
	idgen    IDGenerator
	now      func() time.Time
	pageSize int
	maxPage  int
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRecordStore sets the record store for the service
func WithRecordStore(store RecordStore) Option {
	return func(s *service) {
		s.records = store
	}
}

// WithBlobStore sets the blob store for the service
func WithBlobStore(store BlobStore) Option {
	return func(s *service) {
		s.blobs = store
	}
}

// WithIDGenerator overrides the default UUIDv7 generator
func WithIDGenerator(gen IDGenerator) Option {
	return func(s *service) {
		s.idgen = gen
	}
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithPageLimits sets the default and maximum list page sizes
func WithPageLimits(defaultSize, maxSize int) Option {
	return func(s *service) {
		if defaultSize > 0 {
			s.pageSize = defaultSize
		}
		if maxSize > 0 {
			s.maxPage = maxSize
		}
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		idgen:    NewUUIDv7Generator(),
		now:      func() time.Time { return time.Now().UTC() },
		pageSize: defaultPageSize,
		maxPage:  defaultMaxPage,
	}

	for _, option := range options {
		option(s)
	}

	if s.records == nil {
		return nil, fmt.Errorf("record store is required")
	}

	return s, nil
}

// classifyStoreErr folds adapter failures into the error taxonomy. Taxonomy
// errors pass through; deadline failures become retryable timeouts; anything
// else is a transient store failure.
func classifyStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrItemExists),
		errors.Is(err, ErrVersionConflict),
		errors.Is(err, ErrBlobNotFound),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrStoreTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrStoreTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func (s *service) CreateItem(ctx context.Context, req CreateItemRequest) (*ContentItem, error) {
	if req.Body == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidInput)
	}

	var lastErr error
	for attempt := 0; attempt < createAttempts; attempt++ {
		id, err := s.idgen.NewID()
		if err != nil {
			return nil, &ItemError{Op: "create", Err: fmt.Errorf("%w: %v", ErrGeneratorExhausted, err)}
		}

		now := s.now()
		item := &ContentItem{
			ID:        id,
			Body:      req.Body,
			MediaRefs: []MediaRef{},
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err = classifyStoreErr(s.records.Put(ctx, item))
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, ErrItemExists) {
			return nil, &ItemError{ItemID: id, Op: "create", Err: err}
		}
		lastErr = err
	}

	return nil, &ItemError{Op: "create", Err: fmt.Errorf("%w: %v", ErrGeneratorExhausted, lastErr)}
}

func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*ContentItem, error) {
	item, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, &ItemError{ItemID: id, Op: "get", Err: classifyStoreErr(err)}
	}
	if item.Deleted() {
		return nil, &ItemError{ItemID: id, Op: "get", Err: ErrItemNotFound}
	}
	return item, nil
}

func (s *service) UpdateItem(ctx context.Context, req UpdateItemRequest) (*ContentItem, error) {
	if req.Body == nil {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidInput)
	}
	if req.ExpectedVersion < 1 {
		return nil, fmt.Errorf("%w: expected version must be positive", ErrInvalidInput)
	}

	cur, err := s.GetItem(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	updated := cur.Clone()
	updated.Body = req.Body
	updated.Version = req.ExpectedVersion + 1
	updated.UpdatedAt = s.now()

	if err := classifyStoreErr(s.records.CompareAndSwap(ctx, req.ExpectedVersion, updated)); err != nil {
		return nil, &ItemError{ItemID: req.ID, Op: "update", Err: err}
	}
	return updated, nil
}

func (s *service) DeleteItem(ctx context.Context, id uuid.UUID) error {
	for attempt := 0; attempt < deleteAttempts; attempt++ {
		cur, err := s.records.Get(ctx, id)
		if errors.Is(err, ErrItemNotFound) {
			return nil
		}
		if err != nil {
			return &ItemError{ItemID: id, Op: "delete", Err: classifyStoreErr(err)}
		}
		if cur.Deleted() {
			return nil
		}

		tomb := cur.Clone()
		now := s.now()
		tomb.DeletedAt = &now
		tomb.UpdatedAt = now
		tomb.Version = cur.Version + 1

		err = classifyStoreErr(s.records.CompareAndSwap(ctx, cur.Version, tomb))
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrItemNotFound):
			// Tombstoned by a racing delete.
			return nil
		case errors.Is(err, ErrVersionConflict):
			// A racing update won; re-read and tombstone the new version.
			continue
		default:
			return &ItemError{ItemID: id, Op: "delete", Err: err}
		}
	}
	return &ItemError{ItemID: id, Op: "delete", Err: ErrVersionConflict}
}

func (s *service) AttachMedia(ctx context.Context, req AttachMediaRequest) (*ContentItem, error) {
	if req.Key == "" {
		return nil, fmt.Errorf("%w: blob key is required", ErrInvalidInput)
	}
	if req.Size < 0 {
		return nil, fmt.Errorf("%w: size must be non-negative", ErrInvalidInput)
	}
	if req.ExpectedVersion < 1 {
		return nil, fmt.Errorf("%w: expected version must be positive", ErrInvalidInput)
	}
	if s.blobs == nil {
		return nil, &ItemError{ItemID: req.ID, Op: "attach_media", Err: errNoBlobStore}
	}

	ok, err := s.blobs.Exists(ctx, req.Key)
	if err != nil {
		return nil, &ItemError{ItemID: req.ID, Op: "attach_media", Err: classifyStoreErr(err)}
	}
	if !ok {
		return nil, &ItemError{ItemID: req.ID, Op: "attach_media",
			Err: fmt.Errorf("%w: blob %q does not exist", ErrInvalidInput, req.Key)}
	}

	cur, err := s.GetItem(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	updated := cur.Clone()
	updated.MediaRefs = append(updated.MediaRefs, MediaRef{
		Key:         req.Key,
		ContentType: req.ContentType,
		Size:        req.Size,
	})
	updated.Version = req.ExpectedVersion + 1
	updated.UpdatedAt = s.now()

	if err := classifyStoreErr(s.records.CompareAndSwap(ctx, req.ExpectedVersion, updated)); err != nil {
		return nil, &ItemError{ItemID: req.ID, Op: "attach_media", Err: err}
	}
	return updated, nil
}

func (s *service) UploadMedia(ctx context.Context, req UploadMediaRequest) (*ContentItem, error) {
	if req.Reader == nil {
		return nil, fmt.Errorf("%w: media body is required", ErrInvalidInput)
	}
	if s.blobs == nil {
		return nil, &ItemError{ItemID: req.ID, Op: "upload_media", Err: errNoBlobStore}
	}

	// Fail fast before uploading anything.
	if _, err := s.GetItem(ctx, req.ID); err != nil {
		return nil, err
	}

	blobID, err := s.idgen.NewID()
	if err != nil {
		return nil, &ItemError{ItemID: req.ID, Op: "upload_media", Err: fmt.Errorf("%w: %v", ErrGeneratorExhausted, err)}
	}
	key := fmt.Sprintf("%s/%s", req.ID, blobID)

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	counted := &countingReader{reader: req.Reader}
	if err := s.blobs.Upload(ctx, key, counted, contentType); err != nil {
		return nil, &ItemError{ItemID: req.ID, Op: "upload_media", Err: classifyStoreErr(err)}
	}

	// If the attach loses the CAS race the blob is orphaned, which the
	// external reaper is allowed to reclaim.
	return s.AttachMedia(ctx, AttachMediaRequest{
		ID:              req.ID,
		ExpectedVersion: req.ExpectedVersion,
		Key:             key,
		ContentType:     contentType,
		Size:            counted.n,
	})
}

func (s *service) DownloadMedia(ctx context.Context, id uuid.UUID, key string) (io.ReadCloser, *MediaRef, error) {
	if s.blobs == nil {
		return nil, nil, &ItemError{ItemID: id, Op: "download_media", Err: errNoBlobStore}
	}

	item, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var ref *MediaRef
	for i := range item.MediaRefs {
		if item.MediaRefs[i].Key == key {
			ref = &item.MediaRefs[i]
			break
		}
	}
	if ref == nil {
		return nil, nil, &ItemError{ItemID: id, Op: "download_media",
			Err: fmt.Errorf("%w: item does not reference blob %q", ErrInvalidInput, key)}
	}

	rc, err := s.blobs.Download(ctx, key)
	if err != nil {
		return nil, nil, &ItemError{ItemID: id, Op: "download_media", Err: classifyStoreErr(err)}
	}
	return rc, ref, nil
}

func (s *service) ListItems(ctx context.Context, req ListItemsRequest) (*ItemPage, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.pageSize
	}
	if limit > s.maxPage {
		limit = s.maxPage
	}

	afterID := ""
	if req.Cursor != "" {
		var err error
		afterID, err = decodeCursor(req.Cursor)
		if err != nil {
			return nil, err
		}
	}

	// Fetch one extra record to learn whether another page exists.
	items, err := s.records.List(ctx, afterID, limit+1)
	if err != nil {
		return nil, &ItemError{Op: "list", Err: classifyStoreErr(err)}
	}

	page := &ItemPage{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.NextCursor = encodeCursor(page.Items[limit-1].ID)
	}
	return page, nil
}

type countingReader struct {
	reader io.Reader
	n      int64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.n += int64(n)
	return n, err
}
