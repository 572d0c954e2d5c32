package tracking

import (
	"context"
	"errors"

	"github.com/serroba/email-tracker/internal/events"
	"github.com/serroba/email-tracker/internal/geoip"
	"github.com/serroba/email-tracker/internal/messaging"
	"go.uber.org/zap"
)

// Locator resolves an IP address to a location. *geoip.Resolver satisfies it.
type Locator interface {
	Resolve(ip string) geoip.Result
}

// SendRequest describes a send to log.
type SendRequest struct {
	Subject        string
	RecipientEmail string
	SenderIP       string
	Owner          OwnerID
}

// OpenRequest describes one pixel fetch.
type OpenRequest struct {
	OpenerIP  string
	UserAgent string
}

// Service runs the send-logging and open-recording flows.
type Service struct {
	store               *EventStore
	locator             Locator
	publishSendLogged   messaging.Publish[events.SendLogged]
	publishOpenRecorded messaging.Publish[events.OpenRecorded]
	logger              *zap.Logger
}

// NewService creates a tracking service.
func NewService(
	store *EventStore,
	locator Locator,
	publishSendLogged messaging.Publish[events.SendLogged],
	publishOpenRecorded messaging.Publish[events.OpenRecorded],
	logger *zap.Logger,
) *Service {
	return &Service{
		store:               store,
		locator:             locator,
		publishSendLogged:   publishSendLogged,
		publishOpenRecorded: publishOpenRecorded,
		logger:              logger,
	}
}

// Store returns the underlying event store.
func (s *Service) Store() *EventStore {
	return s.store
}

// LogSend records a send and returns the identifier to embed in the pixel URL.
// Location resolution is best-effort; a storage failure is returned to the caller.
func (s *Service) LogSend(ctx context.Context, req SendRequest) (ID, error) {
	location := s.locator.Resolve(req.SenderIP)

	send, err := s.store.recordSend(ctx, NewSend{
		Subject:        req.Subject,
		RecipientEmail: req.RecipientEmail,
		SenderIP:       req.SenderIP,
		SenderLocation: location.String(),
		Owner:          req.Owner,
	})
	if err != nil {
		s.logger.Error("failed to log send event", zap.Error(err))

		return "", err
	}

	id := send.ID

	owner := string(req.Owner)
	if req.Owner.Anonymous() {
		owner = "anonymous"
	}

	s.logger.Info("logged send",
		zap.String("tracking_id", id.String()),
		zap.String("owner", owner),
		zap.String("location_reason", location.Reason.String()),
	)

	event := &events.SendLogged{
		TrackingID:     id.String(),
		Subject:        req.Subject,
		RecipientEmail: req.RecipientEmail,
		SenderIP:       req.SenderIP,
		SenderLocation: location.String(),
		Owner:          string(req.Owner),
		SentAt:         send.CreatedAt,
	}

	if err := s.publishSendLogged(ctx, event); err != nil {
		s.logger.Error("failed to publish send event",
			zap.String("tracking_id", event.TrackingID),
			zap.Error(err),
		)
	}

	return id, nil
}

// RecordOpen resolves the opener's location and appends an open event.
// The returned error is for logging only: nil, ErrNotFound or ErrStorage.
func (s *Service) RecordOpen(ctx context.Context, id ID, req OpenRequest) error {
	location := s.locator.Resolve(req.OpenerIP)

	open, err := s.store.recordOpen(ctx, id, NewOpen{
		OpenerIP:       req.OpenerIP,
		OpenerLocation: location.String(),
		UserAgent:      req.UserAgent,
	})

	switch {
	case errors.Is(err, ErrNotFound):
		s.logger.Warn("tracking id not found",
			zap.String("tracking_id", id.String()),
			zap.String("client_ip", req.OpenerIP),
		)

		return err
	case err != nil:
		s.logger.Error("failed to record open",
			zap.String("tracking_id", id.String()),
			zap.String("client_ip", req.OpenerIP),
			zap.Error(err),
		)

		return err
	}

	s.logger.Info("logged open",
		zap.String("tracking_id", id.String()),
		zap.String("client_ip", req.OpenerIP),
		zap.String("location_reason", location.Reason.String()),
	)

	event := &events.OpenRecorded{
		TrackingID:     id.String(),
		OpenerIP:       req.OpenerIP,
		OpenerLocation: location.String(),
		UserAgent:      open.UserAgent,
		OpenedAt:       open.OpenedAt,
	}

	if err := s.publishOpenRecorded(ctx, event); err != nil {
		s.logger.Error("failed to publish open event",
			zap.String("tracking_id", event.TrackingID),
			zap.Error(err),
		)
	}

	return nil
}
