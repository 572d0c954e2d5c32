package tracking

import "errors"

var (
	// ErrMalformedIdentifier is returned when a candidate string is not a canonical identifier.
	ErrMalformedIdentifier = errors.New("malformed tracking identifier")
	// ErrNotFound is returned when no send event matches, or it belongs to another owner.
	ErrNotFound = errors.New("send event not found")
	// ErrStorage wraps every transactional persistence failure.
	ErrStorage = errors.New("storage failure")
	// ErrDuplicateID is reported by repositories when the unique identifier index rejects an insert.
	ErrDuplicateID = errors.New("duplicate tracking identifier")
)
