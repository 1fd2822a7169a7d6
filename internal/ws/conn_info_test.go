package ws

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConnInfoFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.1")
	req.Header.Set("X-Request-Id", "req-5")

	a := newConnInfo(req, "trace-1")
	b := newConnInfo(req, "trace-1")

	assert.Equal(t, "10.0.0.7", a.IP)
	assert.Equal(t, "req-5", a.RequestID)
	assert.Equal(t, "trace-1", a.TraceID)
	assert.NotEmpty(t, a.ConnID)
	assert.NotEqual(t, a.ConnID, b.ConnID)
}

func TestEventPayload(t *testing.T) {
	info := ConnInfo{ConnID: "c1", IP: "1.2.3.4"}
	payload := info.eventPayload("ws_disconnect", "closed")

	ws, ok := payload["ws"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ws_disconnect", ws["event"])
	assert.Equal(t, "c1", ws["conn_id"])
	assert.Equal(t, "closed", ws["reason"])
	assert.Equal(t, map[string]interface{}{"ip": "1.2.3.4"}, payload["identity"])
}
