package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-widget/internal/render"
)

// serverConn returns the server side of a fresh websocket connection.
func serverConn(t *testing.T) *websocket.Conn {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case conn := <-conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no server connection")
		return nil
	}
}

func TestSendWaitsForWritePump(t *testing.T) {
	c := NewClient(serverConn(t), Config{WriteWait: time.Second, PingInterval: time.Minute})
	t.Cleanup(c.Close)

	for i := 0; i < sendQueueSize; i++ {
		require.NoError(t, c.Send(render.Op{Op: render.OpAppend}))
	}

	done := make(chan error, 1)
	go func() { done <- c.Send(render.Op{Op: render.OpAppend, ID: "late"}) }()

	select {
	case err := <-done:
		t.Fatalf("send returned before the queue drained: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	<-c.send
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("send did not complete")
	}
	select {
	case <-c.Closed():
		t.Fatal("client closed")
	default:
	}
}

func TestSendClosesStalledClient(t *testing.T) {
	c := NewClient(serverConn(t), Config{WriteWait: 50 * time.Millisecond, PingInterval: time.Minute})

	for i := 0; i < sendQueueSize; i++ {
		require.NoError(t, c.Send(render.Op{Op: render.OpAppend}))
	}

	err := c.Send(render.Op{Op: render.OpAppend})
	assert.ErrorIs(t, err, ErrSlowClient)
	<-c.Closed()
	assert.ErrorIs(t, c.Send(render.Op{Op: render.OpAppend}), websocket.ErrCloseSent)
}
