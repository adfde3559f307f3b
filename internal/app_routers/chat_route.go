package approuters

import (
	"github.com/gin-gonic/gin"

	"playchat/internal/configuration"
	"playchat/internal/handler"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chatHandler := handler.NewChatHandler(container.ChatService)

	chatRoute := router.Group("/api/chat", handler.AuthRequired(container.Tokens))
	{
		chatRoute.GET("/messages", chatHandler.GetMessages)
		chatRoute.PUT("/messages/read", chatHandler.MarkRead)
		chatRoute.GET("/messages/unread-count", chatHandler.UnreadCount)
		chatRoute.GET("/messages/unread-count-from", chatHandler.UnreadCountFrom)
		chatRoute.GET("/conversations", chatHandler.Conversations)
	}
}
