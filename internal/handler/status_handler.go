package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"playchat/internal/hub"
)

type StatusHandler interface {
	Status(c *gin.Context)
}

type statusHandler struct {
	hub *hub.Hub
}

func NewStatusHandler(h *hub.Hub) StatusHandler {
	return &statusHandler{hub: h}
}

// Status reports liveness plus a snapshot of the hub.
func (h *statusHandler) Status(c *gin.Context) {
	stats := h.hub.Stats()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptimeSeconds": int64(time.Since(stats.StartedAt).Seconds()),
		"hub":           stats,
	})
}
