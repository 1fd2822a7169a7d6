package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"chat-widget/internal/models"
	"chat-widget/internal/store"
)

// MessageHandler exposes the message collection over REST.
type MessageHandler struct {
	store  store.MessageStore
	maxLen int
	now    func() time.Time
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(st store.MessageStore, maxLen int) *MessageHandler {
	return &MessageHandler{store: st, maxLen: maxLen, now: time.Now}
}

// ListMessages returns all messages ordered by date.
func (h *MessageHandler) ListMessages(c *gin.Context) {
	msgs, err := h.store.QueryOrdered(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a new message dated now.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Message  string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := models.Compose(req.Username, req.Message, h.now(), h.maxLen)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.store.Create(c.Request.Context(), msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}
	msg.ID = id
	c.JSON(http.StatusCreated, msg)
}

// UpdateMessage replaces the text of a message.
func (h *MessageHandler) UpdateMessage(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	text, err := models.NormalizeText(req.Message, h.maxLen)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.Update(c.Request.Context(), c.Param("message_id"), models.MessageUpdate{Message: text}); err != nil {
		writeStoreError(c, err, "could not update message")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteMessage removes a message.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("message_id")); err != nil {
		writeStoreError(c, err, "could not delete message")
		return
	}
	c.Status(http.StatusNoContent)
}

func writeStoreError(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
		msg = "message not found"
	}
	c.JSON(status, gin.H{"error": msg})
}
