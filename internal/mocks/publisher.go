package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-widget/internal/rabbitmq"
	"chat-widget/internal/telemetry"
)

var (
	_ rabbitmq.Publisher  = (*PublisherMock)(nil)
	_ telemetry.Publisher = (*PublisherMock)(nil)
)

// PublisherMock stands in for the AMQP publisher behind audit and lifecycle events.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
