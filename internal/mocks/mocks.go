package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-widget/internal/models"
	"chat-widget/internal/store"
)

var _ store.MessageStore = (*MessageStoreMock)(nil)

type MessageStoreMock struct {
	mock.Mock
}

func (m *MessageStoreMock) Create(ctx context.Context, msg models.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *MessageStoreMock) Update(ctx context.Context, id string, update models.MessageUpdate) error {
	args := m.Called(ctx, id, update)
	return args.Error(0)
}

func (m *MessageStoreMock) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MessageStoreMock) QueryOrdered(ctx context.Context) ([]models.Message, error) {
	args := m.Called(ctx)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageStoreMock) Subscribe(ctx context.Context, fn func(models.Batch)) error {
	args := m.Called(ctx, fn)
	return args.Error(0)
}
