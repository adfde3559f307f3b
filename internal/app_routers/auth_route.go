package approuters

import (
	"github.com/gin-gonic/gin"

	"playchat/internal/configuration"
	"playchat/internal/handler"
)

func AuthRouters(router *gin.Engine, container *configuration.Container) {
	authHandler := handler.NewAuthHandler(container.UserService)

	authRoute := router.Group("/api/auth")
	{
		authRoute.POST("/signup", authHandler.Signup)
		authRoute.POST("/signin", authHandler.Signin)
	}
}
