package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultPageSize is the dashboard page size.
	DefaultPageSize = 15
	// MaxPageSize bounds caller-supplied page sizes.
	MaxPageSize = 100
)

// EventStore records send and open events on top of a Repository and maps every
// backend failure onto the package error taxonomy.
type EventStore struct {
	repo  Repository
	newID IDGenerator
	now   func() time.Time
}

// NewEventStore creates an event store minting identifiers with newID.
func NewEventStore(repo Repository, newID IDGenerator) *EventStore {
	return &EventStore{
		repo:  repo,
		newID: newID,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// RecordSend persists a new send event under a freshly minted identifier.
// On failure no identifier is returned and the error wraps ErrStorage.
func (s *EventStore) RecordSend(ctx context.Context, fields NewSend) (ID, error) {
	send, err := s.recordSend(ctx, fields)
	if err != nil {
		return "", err
	}

	return send.ID, nil
}

// recordSend returns the stored send event.
func (s *EventStore) recordSend(ctx context.Context, fields NewSend) (*SendEvent, error) {
	send := &SendEvent{
		ID:             s.newID(),
		CreatedAt:      s.now(),
		Subject:        fields.Subject,
		RecipientEmail: fields.RecipientEmail,
		SenderIP:       fields.SenderIP,
		SenderLocation: fields.SenderLocation,
		Owner:          fields.Owner,
	}

	if err := s.repo.InsertSend(ctx, send); err != nil {
		return nil, storageError("record send", err)
	}

	return send, nil
}

// RecordOpen appends an open event to the send identified by id.
// It returns nil, an ErrNotFound error, or an ErrStorage error.
func (s *EventStore) RecordOpen(ctx context.Context, id ID, fields NewOpen) error {
	_, err := s.recordOpen(ctx, id, fields)

	return err
}

// recordOpen returns the stored open event.
func (s *EventStore) recordOpen(ctx context.Context, id ID, fields NewOpen) (*OpenEvent, error) {
	open := &OpenEvent{
		OpenedAt:       s.now(),
		OpenerIP:       fields.OpenerIP,
		OpenerLocation: fields.OpenerLocation,
		UserAgent:      NormalizeUserAgent(fields.UserAgent),
	}

	err := s.repo.AppendOpen(ctx, id, open)
	if err == nil {
		return open, nil
	}

	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("record open %s: %w", id, ErrNotFound)
	}

	return nil, storageError("record open "+id.String(), err)
}

// GetReport returns the owner's send with its opens, oldest first.
// Sends that are absent and sends owned by someone else are both ErrNotFound.
func (s *EventStore) GetReport(ctx context.Context, id ID, owner OwnerID) (*Report, error) {
	if owner.Anonymous() {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}

	report, err := s.repo.FindSendForOwner(ctx, id, owner)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
		}

		return nil, storageError("report "+id.String(), err)
	}

	return report, nil
}

// ListForOwner returns one page of the owner's sends, most recent first.
// Pages are 1-based; out-of-range sizes fall back to DefaultPageSize or MaxPageSize.
func (s *EventStore) ListForOwner(ctx context.Context, owner OwnerID, page, pageSize int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	result := &Page{Items: []SendEvent{}, Page: page, PageSize: pageSize}
	if owner.Anonymous() {
		return result, nil
	}

	items, total, err := s.repo.ListSendsForOwner(ctx, owner, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, storageError("list sends", err)
	}

	if items != nil {
		result.Items = items
	}

	result.Total = total

	return result, nil
}

// DeleteSend removes an owner's send together with all of its opens.
func (s *EventStore) DeleteSend(ctx context.Context, id ID, owner OwnerID) error {
	if owner.Anonymous() {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}

	err := s.repo.DeleteSend(ctx, id, owner)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}

	return storageError("delete "+id.String(), err)
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
