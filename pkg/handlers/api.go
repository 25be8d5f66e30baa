package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"blog-cms/pkg/config"
	"blog-cms/pkg/models"
	"blog-cms/pkg/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// API serves the post endpoints.
type API struct {
	cfg   *config.Config
	repo  *services.PostRepository
	media *services.MediaStore
	idem  *IdempotencyCache
}

func NewAPI(cfg *config.Config, repo *services.PostRepository, media *services.MediaStore) *API {
	return &API{
		cfg:   cfg,
		repo:  repo,
		media: media,
		idem:  NewIdempotencyCache(defaultIdempotencyTTL),
	}
}

func (a *API) ListPosts(c *gin.Context) {
	posts, err := a.repo.ListAll(c.Request.Context())
	if err != nil {
		slog.Error("List posts failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to load posts."})
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (a *API) CreatePost(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	var in models.PostInput
	if err := binding.JSON.BindBody(raw, &in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	key := c.GetHeader(IdempotencyHeader)
	status, body, replay, err := a.idem.Acquire(c.Request.Context(), key, raw)
	switch {
	case errors.Is(err, errIdempotencyMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Idempotency-Key was already used for a different post."})
		return
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Request cancelled."})
		return
	case replay:
		c.Data(status, gin.MIMEJSON, body)
		return
	}

	post, posts, err := a.repo.Create(c.Request.Context(), in)
	if err != nil {
		a.idem.Abandon(key)
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title and content are required.", "fields": verr.Fields})
		case errors.Is(err, services.ErrSlugConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "A post with this slug already exists."})
		default:
			slog.Error("Create post failed", "title", in.Title, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to create post."})
		}
		return
	}

	body, err = json.Marshal(gin.H{"success": true, "post": post, "posts": posts})
	if err != nil {
		a.idem.Abandon(key)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to create post."})
		return
	}
	a.idem.Complete(key, http.StatusOK, body)
	c.Data(http.StatusOK, gin.MIMEJSON, body)
}

func (a *API) DeletePost(c *gin.Context) {
	posts, err := a.repo.Remove(c.Request.Context(), c.Param("slug"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Slug is required."})
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found."})
		default:
			slog.Error("Delete post failed", "slug", c.Param("slug"), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to delete post."})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "posts": posts})
}

// GetProfile serves the site owner's profile document as-is.
func (a *API) GetProfile(c *gin.Context) {
	raw, err := os.ReadFile(a.cfg.Resolve(a.cfg.ProfilePath))
	if err != nil || !json.Valid(raw) {
		slog.Error("Load profile failed", "path", a.cfg.ProfilePath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Unable to load profile data."})
		return
	}
	c.Data(http.StatusOK, gin.MIMEJSON, raw)
}
