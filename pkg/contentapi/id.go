package contentapi

import "github.com/google/uuid"

// uuidV7Generator produces UUIDv7 identifiers. Their canonical string form
// sorts by generation time, which is what keeps list pagination stable.
type uuidV7Generator struct{}

// NewUUIDv7Generator returns the default id generator.
func NewUUIDv7Generator() IDGenerator {
	return uuidV7Generator{}
}

func (uuidV7Generator) NewID() (uuid.UUID, error) {
	return uuid.NewV7()
}
