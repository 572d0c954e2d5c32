package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/email-tracker/internal/messaging"
	"go.uber.org/zap"
)

// Sink receives tracking events delivered by the broker.
type Sink interface {
	SendLogged(ctx context.Context, event *SendLogged) error
	OpenRecorded(ctx context.Context, event *OpenRecorded) error
}

// LogSink writes every event to the log. It is the default sink of the consumer process.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs events.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) SendLogged(_ context.Context, event *SendLogged) error {
	s.logger.Info("send logged",
		zap.String("tracking_id", event.TrackingID),
		zap.String("recipient", event.RecipientEmail),
		zap.String("owner", event.Owner),
		zap.Time("sent_at", event.SentAt),
	)

	return nil
}

func (s *LogSink) OpenRecorded(_ context.Context, event *OpenRecorded) error {
	s.logger.Info("email opened",
		zap.String("tracking_id", event.TrackingID),
		zap.String("opener_ip", event.OpenerIP),
		zap.String("opener_location", event.OpenerLocation),
		zap.Time("opened_at", event.OpenedAt),
	)

	return nil
}

// RegisterConsumers adds one consumer per tracking topic to group, all delivering to sink.
func RegisterConsumers(group *messaging.ConsumerGroup, subscriber message.Subscriber, sink Sink, logger *zap.Logger) {
	group.Add(messaging.NewConsumer(subscriber, TopicSendLogged, sink.SendLogged, logger))
	group.Add(messaging.NewConsumer(subscriber, TopicOpenRecorded, sink.OpenRecorded, logger))
}

var _ Sink = (*LogSink)(nil)
