package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"playchat/internal/service"
)

type UserHandler interface {
	Search(c *gin.Context)
}

type userHandler struct {
	users service.UserService
}

func NewUserHandler(users service.UserService) UserHandler {
	return &userHandler{users: users}
}

// Search looks users up by username or email; the requester is excluded from
// the results.
func (h *userHandler) Search(c *gin.Context) {
	results, err := h.users.Search(c.Request.Context(), c.Query("query"), currentEmail(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": results})
}
