package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"playchat/internal/service"
)

type ChatHandler interface {
	GetMessages(c *gin.Context)
	MarkRead(c *gin.Context)
	UnreadCount(c *gin.Context)
	UnreadCountFrom(c *gin.Context)
	Conversations(c *gin.Context)
}

type chatHandler struct {
	chat service.ChatService
}

func NewChatHandler(chat service.ChatService) ChatHandler {
	return &chatHandler{chat: chat}
}

// GetMessages returns one page of history between the authenticated user and
// the peer, newest first.
func (h *chatHandler) GetMessages(c *gin.Context) {
	peerID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil || peerID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
		return
	}

	page := parseInt64Default(c.Query("page"), 1)
	size := parseInt64Default(c.Query("size"), 50)

	messages, err := h.chat.History(c.Request.Context(), currentUserID(c), peerID, page, size)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// MarkRead flips unread messages from the given sender to the authenticated
// user and reports how many transitioned.
func (h *chatHandler) MarkRead(c *gin.Context) {
	senderID, err := strconv.ParseInt(c.Query("senderId"), 10, 64)
	if err != nil || senderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid senderId"})
		return
	}

	count, err := h.chat.MarkRead(c.Request.Context(), senderID, currentUserID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": count})
}

func (h *chatHandler) UnreadCount(c *gin.Context) {
	count, err := h.chat.UnreadCount(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *chatHandler) UnreadCountFrom(c *gin.Context) {
	senderID, err := strconv.ParseInt(c.Query("senderId"), 10, 64)
	if err != nil || senderID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid senderId"})
		return
	}

	count, err := h.chat.UnreadCountFrom(c.Request.Context(), currentUserID(c), senderID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (h *chatHandler) Conversations(c *gin.Context) {
	conversations, err := h.chat.Conversations(c.Request.Context(), currentUserID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

func parseInt64Default(s string, def int64) int64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 1 {
		return def
	}
	return v
}
