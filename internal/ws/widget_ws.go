package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"chat-widget/internal/livesync"
	"chat-widget/internal/log"
	"chat-widget/internal/observability"
	"chat-widget/internal/render"
	"chat-widget/internal/store"
	"chat-widget/internal/telemetry"
)

// Command is a user intent sent by the browser.
type Command struct {
	Action   string `json:"action"`
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Message  string `json:"message,omitempty"`
}

// WidgetHandler serves the live message list over websocket. Each connection
// gets its own sync controller.
type WidgetHandler struct {
	hub      *Hub
	store    store.MessageStore
	cfg      Config
	location *time.Location
	audit    *telemetry.AuditEmitter
	maxLen   int
}

// NewWidgetHandler constructs a WidgetHandler.
func NewWidgetHandler(hub *Hub, st store.MessageStore, cfg Config, location *time.Location, maxLen int, audit *telemetry.AuditEmitter) *WidgetHandler {
	return &WidgetHandler{hub: hub, store: st, cfg: cfg, location: location, maxLen: maxLen, audit: audit}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and starts its controller.
func (h *WidgetHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("chat-widget/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	conn, err := upgrader.Upgrade(c.Writer, c.Request.WithContext(ctx), nil)
	if err != nil {
		return
	}

	info := newConnInfo(c.Request, span.SpanContext().TraceID().String())
	client := NewClient(conn, h.cfg)
	h.hub.Add(client, info)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publish(ctx, "ws_connect", info, "")

	logger := log.L().With().Str("conn_id", info.ConnID).Logger()
	logger.Info().Str("ip", info.IP).Msg("widget connected")

	// the request context ends when this handler returns
	viewCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	controller := livesync.New(h.store, render.NewRenderer(client, h.location),
		livesync.WithViewID(info.ConnID),
		livesync.WithMaxLength(h.maxLen),
		livesync.WithAudit(h.audit),
	)

	go client.WritePump()
	go func() {
		if err := controller.Run(viewCtx); err != nil {
			logger.Error().Err(err).Msg("live view failed")
			client.Close()
		}
	}()
	go func() {
		var reason string
		defer func() {
			h.hub.Remove(client)
			observability.DecWSActive()
			observability.IncWSEvent("ws_disconnect")
			h.publish(viewCtx, "ws_disconnect", info, reason)
			logger.Info().Str("reason", reason).Msg("widget disconnected")
			cancel()
		}()
		err := client.ReadPump(func(data []byte) { dispatch(controller, data) })
		if err != nil {
			reason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
		}
	}()
}

func dispatch(controller *livesync.Controller, data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		log.L().Debug().Err(err).Msg("invalid command")
		return
	}
	switch cmd.Action {
	case "submit":
		controller.Submit(cmd.Username, cmd.Message)
	case "delete":
		controller.Delete(cmd.ID)
	case "edit":
		controller.Edit(cmd.ID)
	case "close_edit":
		controller.CloseEdit()
	case "save_edit":
		controller.SaveEdit(cmd.Message)
	default:
		log.L().Debug().Str("action", cmd.Action).Msg("unknown command")
	}
}

func (h *WidgetHandler) publish(ctx context.Context, event string, info ConnInfo, reason string) {
	envelope := observability.NewEnvelope("ws_events", event, info.RequestID, info.TraceID, info.eventPayload(event, reason))
	_ = observability.PublishEvent(ctx, observability.RoutingWSEvents, envelope)
}
