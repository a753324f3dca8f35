package codec

import (
	"fmt"

	"github.com/google/uuid"
)

// ParseCollectionID parses a collection id in canonical UUID text form
func ParseCollectionID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, fmt.Errorf("%w: empty collection id", ErrMalformedIdentifier)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q: %v", ErrMalformedIdentifier, s, err)
	}
	return id, nil
}
