package store

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"chat-widget/internal/log"
	"chat-widget/internal/models"
	"chat-widget/internal/observability"
)

// PublishingStore announces successful writes as message lifecycle events.
type PublishingStore struct {
	MessageStore
}

// NewPublishingStore wraps inner.
func NewPublishingStore(inner MessageStore) *PublishingStore {
	return &PublishingStore{MessageStore: inner}
}

func (s *PublishingStore) Create(ctx context.Context, msg models.Message) (string, error) {
	id, err := s.MessageStore.Create(ctx, msg)
	if err == nil {
		s.publish(ctx, "message_created", map[string]interface{}{
			"id":       id,
			"username": msg.Username,
			"date":     msg.Date,
		})
	}
	return id, err
}

func (s *PublishingStore) Update(ctx context.Context, id string, update models.MessageUpdate) error {
	err := s.MessageStore.Update(ctx, id, update)
	if err == nil {
		s.publish(ctx, "message_updated", map[string]interface{}{"id": id})
	}
	return err
}

func (s *PublishingStore) Delete(ctx context.Context, id string) error {
	err := s.MessageStore.Delete(ctx, id)
	if err == nil {
		s.publish(ctx, "message_deleted", map[string]interface{}{"id": id})
	}
	return err
}

func (s *PublishingStore) publish(ctx context.Context, name string, payload map[string]interface{}) {
	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	requestID := observability.RequestIDFromContext(ctx)
	envelope := observability.NewEnvelope("message_events", name, requestID, traceID, payload)
	if err := observability.PublishEvent(ctx, observability.RoutingMessageEvents, envelope); err != nil {
		log.L().Warn().Err(err).Str("event", name).Msg("publish message event")
	}
}
