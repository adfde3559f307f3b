package handler

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"playchat/internal/service"
)

type ProfileHandler interface {
	Me(c *gin.Context)
	UploadImage(c *gin.Context)
	DeleteImage(c *gin.Context)
	ServeImage(c *gin.Context)
}

type profileHandler struct {
	users service.UserService
}

func NewProfileHandler(users service.UserService) ProfileHandler {
	return &profileHandler{users: users}
}

// Me returns the authenticated user's own profile.
func (h *profileHandler) Me(c *gin.Context) {
	user, err := h.users.FindByEmail(c.Request.Context(), currentEmail(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UploadImage accepts a multipart image, stores it and returns the new URL.
func (h *profileHandler) UploadImage(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "please select an image file"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image file"})
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	url, err := h.users.UploadProfileImage(c.Request.Context(), currentEmail(c), data, contentType)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profileImageUrl": url})
}

func (h *profileHandler) DeleteImage(c *gin.Context) {
	if err := h.users.RemoveProfileImage(c.Request.Context(), currentEmail(c)); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile image removed"})
}

// ServeImage streams a stored profile image. Public: image URLs are shared
// between chat participants.
func (h *profileHandler) ServeImage(c *gin.Context) {
	var buf bytes.Buffer
	contentType, err := h.users.ServeProfileImage(c.Request.Context(), c.Request.URL.Path, &buf)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
