package approuters

import (
	"github.com/gin-gonic/gin"

	"playchat/internal/configuration"
	"playchat/internal/handler"
)

// StatusRouters sets up the liveness endpoint.
func StatusRouters(router *gin.Engine, container *configuration.Container) {
	statusHandler := handler.NewStatusHandler(container.Hub)

	router.GET("/status", statusHandler.Status)
}
