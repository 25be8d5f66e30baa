package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"blog-cms/pkg/services"

	"github.com/gin-gonic/gin"
)

func (a *API) ListMedia(c *gin.Context) {
	files, err := a.media.List()
	if err != nil {
		slog.Error("List media failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list media."})
		return
	}
	c.JSON(http.StatusOK, files)
}

func (a *API) UploadMedia(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	info, err := a.media.Save(file)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedMedia) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Only image uploads are supported."})
			return
		}
		slog.Error("Save media failed", "file", file.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "file": info})
}

func (a *API) DeleteMedia(c *gin.Context) {
	if err := a.media.Delete(c.Param("name")); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found."})
			return
		}
		slog.Error("Delete media failed", "name", c.Param("name"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete file."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
