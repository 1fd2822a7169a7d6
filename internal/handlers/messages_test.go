package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-widget/internal/mocks"
	"chat-widget/internal/models"
	"chat-widget/internal/store"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/messages", handler.ListMessages)
	r.POST("/api/messages", handler.PostMessage)
	r.PATCH("/api/messages/:message_id", handler.UpdateMessage)
	r.DELETE("/api/messages/:message_id", handler.DeleteMessage)
	return r
}

func TestListMessagesSuccess(t *testing.T) {
	st := new(mocks.MessageStoreMock)
	router := setupMessageRouter(NewMessageHandler(st, 500))

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	st.On("QueryOrdered", mock.Anything).Return([]models.Message{{ID: "a", Username: "ann", Message: "hi", Date: at}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "a", resp.Messages[0].ID)
	st.AssertExpectations(t)
}

func TestListMessagesEmptyIsArray(t *testing.T) {
	st := new(mocks.MessageStoreMock)
	router := setupMessageRouter(NewMessageHandler(st, 500))

	st.On("QueryOrdered", mock.Anything).Return(([]models.Message)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestListMessagesStoreError(t *testing.T) {
	st := new(mocks.MessageStoreMock)
	router := setupMessageRouter(NewMessageHandler(st, 500))

	st.On("QueryOrdered", mock.Anything).Return(([]models.Message)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	st.AssertExpectations(t)
}

func TestPostMessageSuccess(t *testing.T) {
	st := new(mocks.MessageStoreMock)
	handler := NewMessageHandler(st, 500)
	at := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	handler.now = func() time.Time { return at }
	router := setupMessageRouter(handler)

	st.On("Create", mock.Anything, mock.MatchedBy(func(msg models.Message) bool {
		return msg.Username == "ann" && msg.Message == "hello" && msg.Date.Equal(at.Truncate(time.Millisecond))
	})).Return("new-id", nil).Once()

	body := bytes.NewBufferString(`{"username":" ann ","message":" hello "}`)
	req := httptest.NewRequest(http.MethodPost, "/api/messages", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, "new-id", msg.ID)
	st.AssertExpectations(t)
}

func TestPostMessageBlankRejected(t *testing.T) {
	st := new(mocks.MessageStoreMock)
	router := setupMessageRouter(NewMessageHandler(st, 500))

	body := bytes.NewBufferString(`{"username":"ann","message":"   "}`)
	req := httptest.NewRequest(http.MethodPost, "/api/messages", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	st.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPostMessageInvalidJSON(t *testing.T) {
	st := new(mocks.MessageStoreMock)
	router := setupMessageRouter(NewMessageHandler(st, 500))

	req := httptest.NewRequest(http.MethodPost, "/api/messages", bytes.NewBufferString(`{`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateMessageSuccess(t *testing.T) {
	st := new(mocks.MessageStoreMock)
	router := setupMessageRouter(NewMessageHandler(st, 500))

	st.On("Update", mock.Anything, "a", models.MessageUpdate{Message: "fixed"}).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/api/messages/a", bytes.NewBufferString(`{"message":"fixed"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	st.AssertExpectations(t)
}

func TestUpdateMessageNotFound(t *testing.T) {
	st := new(mocks.MessageStoreMock)
	router := setupMessageRouter(NewMessageHandler(st, 500))

	st.On("Update", mock.Anything, "gone", mock.Anything).Return(&store.Error{Op: "update", ID: "gone", Err: store.ErrNotFound}).Once()

	req := httptest.NewRequest(http.MethodPatch, "/api/messages/gone", bytes.NewBufferString(`{"message":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	st.AssertExpectations(t)
}

func TestDeleteMessageSuccess(t *testing.T) {
	st := new(mocks.MessageStoreMock)
	router := setupMessageRouter(NewMessageHandler(st, 500))

	st.On("Delete", mock.Anything, "a").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/messages/a", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	st.AssertExpectations(t)
}

func TestDeleteMessageStoreError(t *testing.T) {
	st := new(mocks.MessageStoreMock)
	router := setupMessageRouter(NewMessageHandler(st, 500))

	st.On("Delete", mock.Anything, "a").Return(assert.AnError).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/messages/a", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	st.AssertExpectations(t)
}
