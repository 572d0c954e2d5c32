package tracking

import (
	"fmt"

	"github.com/google/uuid"
)

// canonicalIDLength is the length of the hyphenated 8-4-4-4-12 form.
const canonicalIDLength = 36

// ID is the opaque identifier tying a SendEvent to the pixel URLs of one message.
type ID string

// String returns the canonical textual form of the identifier.
func (id ID) String() string {
	return string(id)
}

// NewID mints a new random (version 4) identifier.
// Uniqueness is enforced by the store's unique index, so no lookup happens here.
func NewID() ID {
	return ID(uuid.NewString())
}

// IDGenerator mints identifiers.
type IDGenerator func() ID

// ParseID validates an identifier taken from untrusted input.
// Only the canonical hyphenated form is accepted; braces, urn prefixes and the
// 32-character compact form that uuid.Parse tolerates are rejected.
func ParseID(candidate string) (ID, error) {
	if len(candidate) != canonicalIDLength {
		return "", fmt.Errorf("%w: unexpected length %d", ErrMalformedIdentifier, len(candidate))
	}

	parsed, err := uuid.Parse(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedIdentifier, err)
	}

	return ID(parsed.String()), nil
}
