package ws

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"chat-widget/internal/observability"
)

// ConnInfo describes one widget connection. ConnID doubles as the view id of
// its sync controller.
type ConnInfo struct {
	ConnID      string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnInfo(r *http.Request, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      uuid.NewString(),
		IP:          observability.IPFromRequest(r),
		RequestID:   observability.RequestIDFromRequest(r),
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
}

// eventPayload is the body of a ws_events envelope.
func (i ConnInfo) eventPayload(event, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     i.ConnID,
			"duration_ms": time.Since(i.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"ip": i.IP,
		},
	}
}
