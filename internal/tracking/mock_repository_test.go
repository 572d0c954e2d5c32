package tracking_test

import (
	"context"
	"errors"

	"github.com/serroba/email-tracker/internal/tracking"
)

var errDatabaseDown = errors.New("database down")

// failingRepository fails every call with err.
type failingRepository struct {
	err error
}

func (f *failingRepository) InsertSend(context.Context, *tracking.SendEvent) error {
	return f.err
}

func (f *failingRepository) AppendOpen(context.Context, tracking.ID, *tracking.OpenEvent) error {
	return f.err
}

func (f *failingRepository) FindSendForOwner(
	context.Context, tracking.ID, tracking.OwnerID,
) (*tracking.Report, error) {
	return nil, f.err
}

func (f *failingRepository) ListSendsForOwner(
	context.Context, tracking.OwnerID, int, int,
) ([]tracking.SendEvent, int, error) {
	return nil, 0, f.err
}

func (f *failingRepository) DeleteSend(context.Context, tracking.ID, tracking.OwnerID) error {
	return f.err
}
