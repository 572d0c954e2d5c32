package events_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/serroba/email-tracker/internal/events"
	"github.com/serroba/email-tracker/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	mu     sync.Mutex
	sends  []*events.SendLogged
	opens  []*events.OpenRecorded
	notify chan struct{}
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan struct{}, 10)}
}

func (r *recordingSink) SendLogged(_ context.Context, event *events.SendLogged) error {
	r.mu.Lock()
	r.sends = append(r.sends, event)
	r.mu.Unlock()
	r.notify <- struct{}{}

	return nil
}

func (r *recordingSink) OpenRecorded(_ context.Context, event *events.OpenRecorded) error {
	r.mu.Lock()
	r.opens = append(r.opens, event)
	r.mu.Unlock()
	r.notify <- struct{}{}

	return nil
}

func (r *recordingSink) wait(t *testing.T, n int) {
	t.Helper()

	for range n {
		select {
		case <-r.notify:
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
}

func (r *recordingSink) assertQuiet(t *testing.T) {
	t.Helper()

	select {
	case <-r.notify:
		t.Fatal("unexpected event delivered")
	case <-time.After(100 * time.Millisecond):
	}
}

var (
	errSubscribe = errors.New("subscribe refused")
	errClose     = errors.New("close failed")
)

// topicSubscriber wraps a subscriber, refusing one topic and failing on close.
type topicSubscriber struct {
	message.Subscriber
	refuse   string
	closeErr error
}

func (s *topicSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if topic == s.refuse {
		return nil, errSubscribe
	}

	return s.Subscriber.Subscribe(ctx, topic)
}

func (s *topicSubscriber) Close() error {
	if err := s.Subscriber.Close(); err != nil {
		return err
	}

	return s.closeErr
}

func TestLogSink(t *testing.T) {
	sink := events.NewLogSink(zap.NewNop())

	require.NoError(t, sink.SendLogged(context.Background(), &events.SendLogged{TrackingID: "abc"}))
	require.NoError(t, sink.OpenRecorded(context.Background(), &events.OpenRecorded{TrackingID: "abc"}))
}

func TestRegisterConsumers(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	sink := newRecordingSink()
	group := messaging.NewConsumerGroup(pubSub, zap.NewNop())

	events.RegisterConsumers(group, pubSub, sink, zap.NewNop())
	require.NoError(t, group.Start(context.Background()))

	ctx := context.Background()
	publishSend := messaging.NewPublishFunc[events.SendLogged](pubSub, events.TopicSendLogged)
	publishOpen := messaging.NewPublishFunc[events.OpenRecorded](pubSub, events.TopicOpenRecorded)

	require.NoError(t, publishSend(ctx, &events.SendLogged{TrackingID: "t-1", SentAt: time.Now()}))
	require.NoError(t, publishOpen(ctx, &events.OpenRecorded{TrackingID: "t-1", OpenerIP: "9.8.7.6"}))

	sink.wait(t, 2)

	sink.mu.Lock()
	assert.Len(t, sink.sends, 1)
	require.Len(t, sink.opens, 1)
	assert.Equal(t, "9.8.7.6", sink.opens[0].OpenerIP)
	sink.mu.Unlock()

	require.NoError(t, group.Shutdown())
}

func TestRegisterConsumers_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("failed subscription stops the consumers already started", func(t *testing.T) {
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
		t.Cleanup(func() { _ = pubSub.Close() })

		sub := &topicSubscriber{Subscriber: pubSub, refuse: events.TopicOpenRecorded}
		sink := newRecordingSink()
		group := messaging.NewConsumerGroup(sub, zap.NewNop())
		events.RegisterConsumers(group, sub, sink, zap.NewNop())

		err := group.Start(ctx)

		require.ErrorIs(t, err, errSubscribe)

		publishSend := messaging.NewPublishFunc[events.SendLogged](pubSub, events.TopicSendLogged)
		require.NoError(t, publishSend(ctx, &events.SendLogged{TrackingID: "t-1"}))
		sink.assertQuiet(t)
	})

	t.Run("shutdown joins subscriber errors and stops delivery", func(t *testing.T) {
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
		sub := &topicSubscriber{Subscriber: pubSub, closeErr: errClose}
		sink := newRecordingSink()
		group := messaging.NewConsumerGroup(sub, zap.NewNop())
		events.RegisterConsumers(group, sub, sink, zap.NewNop())

		require.NoError(t, group.Start(ctx))

		err := group.Shutdown()

		require.ErrorIs(t, err, errClose)

		publishOpen := messaging.NewPublishFunc[events.OpenRecorded](pubSub, events.TopicOpenRecorded)
		assert.Error(t, publishOpen(ctx, &events.OpenRecorded{TrackingID: "t-1"}))
		sink.assertQuiet(t)
	})

	t.Run("shutdown without start returns", func(t *testing.T) {
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
		group := messaging.NewConsumerGroup(pubSub, zap.NewNop())
		events.RegisterConsumers(group, pubSub, newRecordingSink(), zap.NewNop())

		assert.NoError(t, group.Shutdown())
	})
}
