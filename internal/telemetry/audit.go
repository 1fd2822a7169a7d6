package telemetry

import (
	"context"
	"time"

	"chat-widget/internal/log"
	"chat-widget/internal/observability"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// AuditEmitter publishes audit log envelopes.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  string            `json:"level"`
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

// Emit publishes one audit entry. A nil emitter drops it.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, fields map[string]string) {
	if e == nil || e.publisher == nil {
		return
	}

	log.L().Debug().Str("level", level).Str("request_id", requestID).Str("text", text).Msg("audit emit")
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		Payload: AuditPayload{
			Level:  level,
			Text:   text,
			Fields: fields,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.L().Warn().Err(err).Msg("audit publish failed")
	}
}

// StoreFailure records a store call issued by a live view that failed. The
// request id is taken from ctx.
func (e *AuditEmitter) StoreFailure(ctx context.Context, viewID, op, messageID string, err error) {
	if err == nil {
		return
	}
	e.Emit(ctx, "ERROR", err.Error(), observability.RequestIDFromContext(ctx), map[string]string{
		"view_id":    viewID,
		"op":         op,
		"message_id": messageID,
	})
}
