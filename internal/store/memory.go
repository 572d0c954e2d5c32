package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/serroba/email-tracker/internal/tracking"
)

// MemoryStore is an in-memory implementation of tracking.Repository.
// It backs tests only; the server always runs against Postgres.
type MemoryStore struct {
	mu          sync.RWMutex
	nextSendKey int64
	nextOpenKey int64
	sends       map[tracking.ID]tracking.SendEvent
	opens       map[int64][]tracking.OpenEvent // send key -> opens
}

// NewMemoryStore creates a new in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sends: make(map[tracking.ID]tracking.SendEvent),
		opens: make(map[int64][]tracking.OpenEvent),
	}
}

func (m *MemoryStore) InsertSend(_ context.Context, send *tracking.SendEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sends[send.ID]; exists {
		return tracking.ErrDuplicateID
	}

	m.nextSendKey++
	send.Key = m.nextSendKey
	m.sends[send.ID] = *send

	return nil
}

func (m *MemoryStore) AppendOpen(_ context.Context, id tracking.ID, open *tracking.OpenEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	send, ok := m.sends[id]
	if !ok {
		return tracking.ErrNotFound
	}

	m.nextOpenKey++
	open.Key = m.nextOpenKey
	open.SendKey = send.Key
	m.opens[send.Key] = append(m.opens[send.Key], *open)

	return nil
}

func (m *MemoryStore) FindSendForOwner(
	_ context.Context, id tracking.ID, owner tracking.OwnerID,
) (*tracking.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	send, ok := m.sends[id]
	if !ok || send.Owner != owner {
		return nil, tracking.ErrNotFound
	}

	opens := slices.Clone(m.opens[send.Key])
	slices.SortStableFunc(opens, func(a, b tracking.OpenEvent) int {
		if c := a.OpenedAt.Compare(b.OpenedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.Key, b.Key)
	})

	if opens == nil {
		opens = []tracking.OpenEvent{}
	}

	return &tracking.Report{Send: send, Opens: opens}, nil
}

func (m *MemoryStore) ListSendsForOwner(
	_ context.Context, owner tracking.OwnerID, limit, offset int,
) ([]tracking.SendEvent, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var owned []tracking.SendEvent

	for _, send := range m.sends {
		if send.Owner == owner {
			owned = append(owned, send)
		}
	}

	slices.SortFunc(owned, func(a, b tracking.SendEvent) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(b.Key, a.Key)
	})

	total := len(owned)
	if offset >= total {
		return []tracking.SendEvent{}, total, nil
	}

	end := min(offset+limit, total)

	return owned[offset:end], total, nil
}

func (m *MemoryStore) DeleteSend(_ context.Context, id tracking.ID, owner tracking.OwnerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	send, ok := m.sends[id]
	if !ok || send.Owner != owner {
		return tracking.ErrNotFound
	}

	delete(m.sends, id)
	delete(m.opens, send.Key)

	return nil
}

// Counts returns the number of stored send and open rows.
func (m *MemoryStore) Counts() (sends, opens int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, o := range m.opens {
		opens += len(o)
	}

	return len(m.sends), opens
}

// Compile-time check.
var _ tracking.Repository = (*MemoryStore)(nil)
