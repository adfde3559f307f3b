package approuters

import (
	"github.com/gin-gonic/gin"

	"playchat/internal/configuration"
	"playchat/internal/handler"
)

func FriendRouters(router *gin.Engine, container *configuration.Container) {
	friendHandler := handler.NewFriendHandler(container.FriendService)

	friendRoute := router.Group("/api/friends", handler.AuthRequired(container.Tokens))
	{
		friendRoute.POST("/requests/:receiverId", friendHandler.SendRequest)
		friendRoute.PUT("/requests/:requestId", friendHandler.Respond)
		friendRoute.GET("/requests/pending", friendHandler.Pending)
		friendRoute.GET("/requests/sent", friendHandler.Sent)
		friendRoute.GET("", friendHandler.Friends)
	}
}
