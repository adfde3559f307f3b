package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"playchat/internal/service"
)

type respondRequest struct {
	Accept bool `json:"accept"`
}

type FriendHandler interface {
	SendRequest(c *gin.Context)
	Respond(c *gin.Context)
	Pending(c *gin.Context)
	Sent(c *gin.Context)
	Friends(c *gin.Context)
}

type friendHandler struct {
	friends service.FriendService
}

func NewFriendHandler(friends service.FriendService) FriendHandler {
	return &friendHandler{friends: friends}
}

func (h *friendHandler) SendRequest(c *gin.Context) {
	receiverID, err := strconv.ParseInt(c.Param("receiverId"), 10, 64)
	if err != nil || receiverID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid receiver id"})
		return
	}

	request, err := h.friends.Send(c.Request.Context(), currentEmail(c), receiverID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

func (h *friendHandler) Respond(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	request, err := h.friends.Respond(c.Request.Context(), c.Param("requestId"), currentEmail(c), req.Accept)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, request)
}

func (h *friendHandler) Pending(c *gin.Context) {
	h.list(c, h.friends.ListPending)
}

func (h *friendHandler) Sent(c *gin.Context) {
	h.list(c, h.friends.ListSent)
}

func (h *friendHandler) Friends(c *gin.Context) {
	h.list(c, h.friends.ListFriends)
}

func (h *friendHandler) list(c *gin.Context, fn func(ctx context.Context, email string) ([]service.FriendRequestView, error)) {
	requests, err := fn(c.Request.Context(), currentEmail(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}
