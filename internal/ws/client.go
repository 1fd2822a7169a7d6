package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat-widget/internal/log"
	"chat-widget/internal/render"
)

// ErrSlowClient is returned by Send when the write pump stopped draining.
var ErrSlowClient = errors.New("websocket client stalled")

const (
	sendQueueSize       = 256
	defaultStallTimeout = 10 * time.Second
)

// Config holds websocket timings and limits.
type Config struct {
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// Client is one browser connection. It implements render.Sink.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	cfg       Config
}

// NewClient wraps conn.
func NewClient(conn *websocket.Conn, cfg Config) *Client {
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		closed: make(chan struct{}),
		cfg:    cfg,
	}
}

// Send queues op for the write pump, waiting while the queue is full. A
// write pump that makes no room within WriteWait has stalled, and the
// connection is closed: dropping an op would leave the browser's list out of
// sync.
func (c *Client) Send(op render.Op) error {
	data, err := json.Marshal(op)
	if err != nil {
		return err
	}
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	case c.send <- data:
		return nil
	default:
	}

	timer := time.NewTimer(c.stallTimeout())
	defer timer.Stop()
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	case c.send <- data:
		return nil
	case <-timer.C:
		log.L().Warn().Int("queued", len(c.send)).Msg("websocket client stalled")
		c.Close()
		return ErrSlowClient
	}
}

func (c *Client) stallTimeout() time.Duration {
	if c.cfg.WriteWait > 0 {
		return c.cfg.WriteWait
	}
	return defaultStallTimeout
}

// Close closes the connection once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

// Closed is closed once the client is closed.
func (c *Client) Closed() <-chan struct{} {
	return c.closed
}

// ReadPump hands every text frame to handle until the connection fails.
// It returns the reason the connection ended.
func (c *Client) ReadPump(handle func([]byte)) error {
	defer c.Close()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.L().Warn().Err(err).Msg("websocket read error")
			}
			return err
		}
		handle(data)
	}
}

// WritePump writes queued ops and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.L().Debug().Err(err).Msg("websocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
