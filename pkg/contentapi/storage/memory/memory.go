package memory

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/tendant/content-api/pkg/contentapi"
)

// Store is an in-memory implementation of the contentapi.BlobStore interface
type Store struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

type blob struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// New creates a new in-memory blob store
func New() contentapi.BlobStore {
	return &Store{
		blobs: make(map[string]blob),
	}
}

func (s *Store) Upload(ctx context.Context, key string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs[key] = blob{
		data:        data,
		contentType: contentType,
		updatedAt:   time.Now().UTC(),
	}
	return nil
}

func (s *Store) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.blobs[key]
	if !exists {
		return nil, contentapi.ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.blobs[key]
	return exists, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.blobs[key]; !exists {
		return contentapi.ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

func (s *Store) Meta(ctx context.Context, key string) (*contentapi.BlobMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, exists := s.blobs[key]
	if !exists {
		return nil, contentapi.ErrBlobNotFound
	}
	return &contentapi.BlobMeta{
		Key:         key,
		Size:        int64(len(b.data)),
		ContentType: b.contentType,
		UpdatedAt:   b.updatedAt,
	}, nil
}
