package tracking

import "context"

// Repository is the persistence contract of the event store. Implementations run
// each method as one transaction and own both entity types' storage.
type Repository interface {
	// InsertSend persists a send event; the ID must already be set.
	// Returns ErrDuplicateID when the identifier is taken.
	InsertSend(ctx context.Context, send *SendEvent) error

	// AppendOpen looks up the send by identifier and appends an open event to it.
	// Returns ErrNotFound when no send matches.
	AppendOpen(ctx context.Context, id ID, open *OpenEvent) error

	// FindSendForOwner returns the send with its opens ordered by time ascending.
	// Returns ErrNotFound when the send is absent or owned by someone else.
	FindSendForOwner(ctx context.Context, id ID, owner OwnerID) (*Report, error)

	// ListSendsForOwner returns one page of sends, most recent first, and the total count.
	ListSendsForOwner(ctx context.Context, owner OwnerID, limit, offset int) ([]SendEvent, int, error)

	// DeleteSend removes an owner's send and, by cascade, all its opens.
	// Returns ErrNotFound when nothing was deleted.
	DeleteSend(ctx context.Context, id ID, owner OwnerID) error
}
