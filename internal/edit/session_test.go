package edit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-widget/internal/mocks"
	"chat-widget/internal/models"
	"chat-widget/internal/render"
)

func setup(t *testing.T) (*Session, *render.Renderer, *mocks.SinkRecorder) {
	t.Helper()
	rec := &mocks.SinkRecorder{}
	r := render.NewRenderer(rec, time.UTC)
	require.NoError(t, r.Mount(models.Message{ID: "a", Username: "alice", Message: "hi", Date: time.Now()}))
	require.NoError(t, r.Mount(models.Message{ID: "b", Username: "bob", Message: "yo", Date: time.Now()}))
	return NewSession(r), r, rec
}

func TestOpenPrefillsCurrentText(t *testing.T) {
	s, _, rec := setup(t)

	require.NoError(t, s.Open("a"))
	id, open := s.Active()
	assert.True(t, open)
	assert.Equal(t, "a", id)

	ops := rec.Ops()
	last := ops[len(ops)-1]
	assert.Equal(t, render.OpPopupOpen, last.Op)
	assert.Contains(t, last.HTML, ">hi</textarea>")
}

func TestOpenIsSingleInstance(t *testing.T) {
	s, _, rec := setup(t)

	require.NoError(t, s.Open("a"))
	require.NoError(t, s.Open("a"))
	require.NoError(t, s.Open("b"))

	assert.Equal(t, []string{
		render.OpAppend, render.OpAppend,
		render.OpPopupOpen, render.OpPopupClose, render.OpPopupOpen,
	}, rec.Kinds())
	id, _ := s.Active()
	assert.Equal(t, "b", id)
}

func TestOpenUnknownID(t *testing.T) {
	s, _, _ := setup(t)
	require.ErrorIs(t, s.Open("missing"), ErrNotRendered)
	_, open := s.Active()
	assert.False(t, open)
}

func TestCloseDiscardsChanges(t *testing.T) {
	s, r, rec := setup(t)
	require.NoError(t, s.Open("a"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	text, _ := r.Text("a")
	assert.Equal(t, "hi", text)
	assert.Equal(t, render.OpPopupClose, rec.Kinds()[len(rec.Kinds())-1])
	_, open := s.Active()
	assert.False(t, open)
}

func TestSaveIsOptimistic(t *testing.T) {
	s, r, rec := setup(t)
	require.NoError(t, s.Open("a"))

	id, err := s.Save("hello")
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	text, _ := r.Text("a")
	assert.Equal(t, "hello", text)
	kinds := rec.Kinds()
	assert.Equal(t, []string{render.OpSetText, render.OpPopupClose}, kinds[len(kinds)-2:])
	_, open := s.Active()
	assert.False(t, open)
}

func TestSaveWithoutPopup(t *testing.T) {
	s, _, _ := setup(t)
	_, err := s.Save("x")
	require.ErrorIs(t, err, ErrNoPopup)
}

func TestCloseIfActive(t *testing.T) {
	s, _, _ := setup(t)
	require.NoError(t, s.Open("a"))

	require.NoError(t, s.CloseIfActive("b"))
	_, open := s.Active()
	assert.True(t, open)

	require.NoError(t, s.CloseIfActive("a"))
	_, open = s.Active()
	assert.False(t, open)
}
