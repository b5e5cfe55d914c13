package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/content-api/pkg/contentapi"
)

// Schema is the DDL the store expects. Applied out of band (migration
// tooling is the operator's choice).
const Schema = `
CREATE TABLE IF NOT EXISTS content_items (
    id         UUID PRIMARY KEY,
    body       JSONB NOT NULL,
    media_refs JSONB NOT NULL DEFAULT '[]'::jsonb,
    version    BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    deleted_at TIMESTAMPTZ
);
`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store implements contentapi.RecordStore using PostgreSQL. The
// compare-and-swap is a conditional UPDATE on (id, version), so atomicity
// holds across service replicas, not just in-process callers.
type Store struct {
	db DBTX
}

// New creates a new PostgreSQL record store
func New(db DBTX) contentapi.RecordStore {
	return &Store{db: db}
}

// NewWithPool creates a new PostgreSQL record store with a connection pool
func NewWithPool(pool *pgxpool.Pool) contentapi.RecordStore {
	return &Store{db: pool}
}

// classifyError folds pgx failures into the contentapi taxonomy.
func classifyError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return contentapi.ErrItemExists
		case "42P01": // undefined_table
			return fmt.Errorf("%w: content_items table missing, migration required", contentapi.ErrStoreUnavailable)
		default:
			return fmt.Errorf("%w: %s failed: %s (code %s)", contentapi.ErrStoreUnavailable, operation, pgErr.Message, pgErr.Code)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", contentapi.ErrStoreTimeout, operation, err)
	}
	return fmt.Errorf("%w: %s: %v", contentapi.ErrStoreUnavailable, operation, err)
}

func marshalItem(item *contentapi.ContentItem) (body, refs []byte, err error) {
	body, err = json.Marshal(item.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: body is not JSON-encodable", contentapi.ErrInvalidInput)
	}
	refs, err = json.Marshal(item.MediaRefs)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: media refs are not JSON-encodable", contentapi.ErrInvalidInput)
	}
	return body, refs, nil
}

func (s *Store) Put(ctx context.Context, item *contentapi.ContentItem) error {
	body, refs, err := marshalItem(item)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO content_items (id, body, media_refs, version, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.db.Exec(ctx, query,
		item.ID, body, refs, item.Version, item.CreatedAt, item.UpdatedAt, item.DeletedAt)
	if err != nil {
		return classifyError("put", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*contentapi.ContentItem, error) {
	query := `
		SELECT id, body, media_refs, version, created_at, updated_at, deleted_at
		FROM content_items WHERE id = $1`

	return scanItem(s.db.QueryRow(ctx, query, id))
}

func (s *Store) CompareAndSwap(ctx context.Context, expectedVersion int64, item *contentapi.ContentItem) error {
	body, refs, err := marshalItem(item)
	if err != nil {
		return err
	}

	query := `
		UPDATE content_items
		SET body = $2, media_refs = $3, version = $4, updated_at = $5, deleted_at = $6
		WHERE id = $1 AND version = $7 AND deleted_at IS NULL`

	tag, err := s.db.Exec(ctx, query,
		item.ID, body, refs, item.Version, item.UpdatedAt, item.DeletedAt, expectedVersion)
	if err != nil {
		return classifyError("compare-and-swap", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// No row matched: distinguish a stale version from a missing or
	// tombstoned record.
	var version int64
	var deletedAt *time.Time
	err = s.db.QueryRow(ctx, `SELECT version, deleted_at FROM content_items WHERE id = $1`, item.ID).
		Scan(&version, &deletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return contentapi.ErrItemNotFound
	}
	if err != nil {
		return classifyError("compare-and-swap", err)
	}
	if deletedAt != nil {
		return contentapi.ErrItemNotFound
	}
	return contentapi.ErrVersionConflict
}

func (s *Store) List(ctx context.Context, afterID string, limit int) ([]*contentapi.ContentItem, error) {
	query := `
		SELECT id, body, media_refs, version, created_at, updated_at, deleted_at
		FROM content_items
		WHERE deleted_at IS NULL AND ($1 = '' OR id::text > $1)
		ORDER BY id::text
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, classifyError("list", err)
	}
	defer rows.Close()

	var items []*contentapi.ContentItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("list", err)
	}
	return items, nil
}

func scanItem(row pgx.Row) (*contentapi.ContentItem, error) {
	var item contentapi.ContentItem
	var body, refs []byte

	err := row.Scan(&item.ID, &body, &refs, &item.Version,
		&item.CreatedAt, &item.UpdatedAt, &item.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contentapi.ErrItemNotFound
	}
	if err != nil {
		return nil, classifyError("scan", err)
	}

	if err := json.Unmarshal(body, &item.Body); err != nil {
		return nil, fmt.Errorf("%w: stored body is corrupt: %v", contentapi.ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal(refs, &item.MediaRefs); err != nil {
		return nil, fmt.Errorf("%w: stored media refs are corrupt: %v", contentapi.ErrStoreUnavailable, err)
	}
	return &item, nil
}
