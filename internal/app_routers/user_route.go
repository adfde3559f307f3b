package approuters

import (
	"github.com/gin-gonic/gin"

	"playchat/internal/configuration"
	"playchat/internal/handler"
)

func UserRouters(router *gin.Engine, container *configuration.Container) {
	userHandler := handler.NewUserHandler(container.UserService)
	profileHandler := handler.NewProfileHandler(container.UserService)

	userRoute := router.Group("/api/users", handler.AuthRequired(container.Tokens))
	{
		userRoute.GET("/search", userHandler.Search)
	}

	profileRoute := router.Group("/api/profile")
	{
		profileRoute.GET("/me", handler.AuthRequired(container.Tokens), profileHandler.Me)
		profileRoute.POST("/upload-image", handler.AuthRequired(container.Tokens), profileHandler.UploadImage)
		profileRoute.DELETE("/image", handler.AuthRequired(container.Tokens), profileHandler.DeleteImage)
		// Images are fetched by <img> tags which cannot carry a bearer token.
		profileRoute.GET("/image/:id", profileHandler.ServeImage)
	}
}
