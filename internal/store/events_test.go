package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-widget/internal/models"
	"chat-widget/internal/observability"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func eventNamed(name string) interface{} {
	return mock.MatchedBy(func(env observability.EventEnvelope) bool {
		return env.EventType == "message_events" && env.EventName == name
	})
}

func TestPublishingStoreAnnouncesWrites(t *testing.T) {
	pub := new(publisherMock)
	observability.SetPublisher(pub)
	defer observability.SetPublisher(nil)

	s := NewPublishingStore(NewMemoryStore())
	ctx := observability.WithRequestID(context.Background(), "req-1")

	pub.On("Publish", mock.Anything, observability.RoutingMessageEvents, mock.MatchedBy(func(env observability.EventEnvelope) bool {
		return env.EventName == "message_created" && env.Headers["x-request-id"] == "req-1"
	})).Return(nil).Once()
	pub.On("Publish", mock.Anything, observability.RoutingMessageEvents, eventNamed("message_updated")).Return(nil).Once()
	pub.On("Publish", mock.Anything, observability.RoutingMessageEvents, eventNamed("message_deleted")).Return(nil).Once()

	id, err := s.Create(ctx, models.Message{Username: "alice", Message: "hi", Date: time.Now().UTC()})
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, id, models.MessageUpdate{Message: "hello"}))
	require.NoError(t, s.Delete(ctx, id))

	pub.AssertExpectations(t)
}

func TestPublishingStoreSkipsFailedWrites(t *testing.T) {
	pub := new(publisherMock)
	observability.SetPublisher(pub)
	defer observability.SetPublisher(nil)

	s := NewPublishingStore(NewMemoryStore())
	assert.ErrorIs(t, s.Delete(context.Background(), "missing"), ErrNotFound)
	assert.ErrorIs(t, s.Update(context.Background(), "missing", models.MessageUpdate{Message: "x"}), ErrNotFound)

	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}
