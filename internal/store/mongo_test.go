package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chat-widget/internal/models"
)

func TestEventFromChange(t *testing.T) {
	oid := primitive.NewObjectID()
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	doc := &mongoDoc{ID: oid, Username: "alice", Message: "hi", Date: at}

	var insert changeDoc
	insert.OperationType = "insert"
	insert.DocumentKey.ID = oid
	insert.FullDocument = doc

	ev, ok := eventFromChange(insert)
	require.True(t, ok)
	assert.Equal(t, models.ChangeEvent{
		Type:    models.ChangeAdded,
		ID:      oid.Hex(),
		Message: models.Message{ID: oid.Hex(), Username: "alice", Message: "hi", Date: at},
	}, ev)

	update := insert
	update.OperationType = "update"
	ev, ok = eventFromChange(update)
	require.True(t, ok)
	assert.Equal(t, models.ChangeModified, ev.Type)

	update.FullDocument = nil
	_, ok = eventFromChange(update)
	assert.False(t, ok)

	var del changeDoc
	del.OperationType = "delete"
	del.DocumentKey.ID = oid
	ev, ok = eventFromChange(del)
	require.True(t, ok)
	assert.Equal(t, models.ChangeEvent{Type: models.ChangeRemoved, ID: oid.Hex()}, ev)

	var drop changeDoc
	drop.OperationType = "drop"
	_, ok = eventFromChange(drop)
	assert.False(t, ok)
}
