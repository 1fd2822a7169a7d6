package observability

import "time"

// Routing keys.
const (
	RoutingMessageEvents = "message_events.widget"
	RoutingWSEvents      = "ws_events.widget"
	RoutingAuditLogs     = "audit_logs.widget"
)

type EventEnvelope struct {
	EventType  string            `json:"event_type"`
	EventName  string            `json:"event_name"`
	OccurredAt string            `json:"occurred_at"`
	Headers    map[string]string `json:"headers,omitempty"`
	Payload    interface{}       `json:"payload"`
}

// NewEnvelope stamps an envelope with the current time and the correlation
// headers built from requestID and traceID.
func NewEnvelope(eventType, eventName, requestID, traceID string, payload interface{}) EventEnvelope {
	headers := BuildHeaders(requestID, traceID)
	if len(headers) == 0 {
		headers = nil
	}
	return EventEnvelope{
		EventType:  eventType,
		EventName:  eventName,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Headers:    headers,
		Payload:    payload,
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
