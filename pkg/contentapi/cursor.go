package contentapi

import (
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// List cursors are opaque to clients: the base64url-encoded string form of
// the last id on the page. The record store compares ids lexicographically,
// so the boundary id is all the position state a page needs.

func encodeCursor(id uuid.UUID) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id.String()))
}

func decodeCursor(cursor string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	if _, err := uuid.Parse(string(raw)); err != nil {
		return "", fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	return string(raw), nil
}
