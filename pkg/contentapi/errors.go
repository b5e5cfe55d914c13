package contentapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Error taxonomy. Store adapters and the service classify every failure into
// one of these sentinels before it reaches a handler; handlers map them onto
// stable error codes and never expose adapter detail.
var (
	// ErrInvalidInput indicates a malformed body or parameter. Not retryable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrItemNotFound indicates the id is absent or tombstoned.
	ErrItemNotFound = errors.New("content item not found")

	// ErrItemExists indicates a create collided with an existing id.
	ErrItemExists = errors.New("content item already exists")

	// ErrVersionConflict indicates a stale expected version; the caller
	// should re-read and retry.
	ErrVersionConflict = errors.New("version conflict")

	// ErrBlobNotFound indicates a blob key with no object behind it.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrStoreUnavailable indicates a transient store failure. Retryable
	// with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreTimeout indicates a store operation exceeded its deadline.
	// Retryable with backoff.
	ErrStoreTimeout = errors.New("store operation timed out")

	// ErrGeneratorExhausted indicates repeated id collisions on create.
	// Fatal for the request; implies a generator defect worth alerting on.
	ErrGeneratorExhausted = errors.New("identifier generator exhausted retry budget")
)

// ItemError wraps a failure of a single item operation.
type ItemError struct {
	ItemID uuid.UUID
	Op     string
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item operation %s failed for %s: %v", e.Op, e.ItemID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// ErrorCode returns the stable machine-readable code for an error, for
// clients that branch programmatically rather than parsing messages.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrBlobNotFound):
		return "not_found"
	case errors.Is(err, ErrVersionConflict), errors.Is(err, ErrItemExists):
		return "version_conflict"
	case errors.Is(err, ErrStoreTimeout):
		return "timeout"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrGeneratorExhausted):
		return "generator_exhausted"
	default:
		return "internal"
	}
}

// HTTPStatus returns the HTTP status for an error.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrItemNotFound), errors.Is(err, ErrBlobNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrVersionConflict), errors.Is(err, ErrItemExists):
		return http.StatusConflict
	case errors.Is(err, ErrStoreTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// SafeMessage returns a client-safe message for an error: the sentinel text
// for classified errors, a generic message otherwise.
func SafeMessage(err error) string {
	for _, sentinel := range []error{
		ErrInvalidInput,
		ErrItemNotFound,
		ErrItemExists,
		ErrVersionConflict,
		ErrBlobNotFound,
		ErrStoreUnavailable,
		ErrStoreTimeout,
		ErrGeneratorExhausted,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}
