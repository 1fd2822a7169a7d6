package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warning "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestNewAddsServiceField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", ServiceName: "chat-widget"}, &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("id", "42").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "chat-widget", line["service"])
	assert.Equal(t, "42", line["id"])
	assert.Equal(t, "shown", line["message"])
}

func TestGlobalLoggerChains(t *testing.T) {
	var buf bytes.Buffer
	prev := global
	t.Cleanup(func() { global = prev })
	global = New(Config{Level: "debug"}, &buf)

	L().Info().Str("id", "7").Msg("chained")
	L().Debug().Msg("debug")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var line map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &line))
	assert.Equal(t, "chained", line["message"])
	assert.Equal(t, "7", line["id"])
}
