package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageMigrationsUseTableAndChannel(t *testing.T) {
	migrations := messageMigrations("widget_messages")
	require.Len(t, migrations, 5)

	assert.Contains(t, migrations[0], "CREATE TABLE IF NOT EXISTS widget_messages")
	assert.Contains(t, migrations[0], "seq BIGSERIAL")
	assert.Contains(t, migrations[1], "ON widget_messages (date, seq)")
	assert.Equal(t, 2, strings.Count(migrations[2], "pg_notify('widget_messages_changes'"))
	assert.Contains(t, migrations[4], "AFTER INSERT OR UPDATE OR DELETE ON widget_messages")
}
