package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/postboard/internal/models"
	"github.com/steemit/postboard/internal/posts"
	"github.com/steemit/postboard/pkg/logging"
)

// maxBodyBytes bounds request bodies read by the handlers
const maxBodyBytes = 1 << 20

// PostService is the post store the API exposes
type PostService interface {
	Create(ctx context.Context, in posts.CreateInput) (*models.Post, error)
	ListAll(ctx context.Context) ([]models.Post, error)
	GetOne(ctx context.Context, id string) (*models.Post, error)
	Update(ctx context.Context, id string, in posts.UpdateInput) (*models.Post, error)
	Delete(ctx context.Context, id string) (*models.Post, error)
	ListReplies(ctx context.Context, id string) ([]models.Post, error)
}

// PostHandler serves the /posts endpoints
type PostHandler struct {
	svc    PostService
	logger *zap.Logger
}

// NewPostHandler creates a new post handler
func NewPostHandler(svc PostService) *PostHandler {
	return &PostHandler{
		svc:    svc,
		logger: logging.WithComponent("api-posts"),
	}
}

// Register mounts the post routes on the given group
func (h *PostHandler) Register(g gin.IRoutes) {
	g.GET("/posts", h.List)
	g.POST("/posts", h.Create)
	g.GET("/posts/:id", h.Get)
	g.PUT("/posts/:id", h.Update)
	g.DELETE("/posts/:id", h.Delete)
	g.GET("/posts/:id/replies", h.Replies)
}

func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
}

func bodyError(err error) *Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return NewError(http.StatusRequestEntityTooLarge, "Request body must not exceed 1 MiB")
	}
	return NewError(http.StatusBadRequest, "Unable to read request body")
}

// List handles GET /posts
func (h *PostHandler) List(c *gin.Context) {
	list, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewPostResponses(list, replyDepth))
}

// Get handles GET /posts/:id
func (h *PostHandler) Get(c *gin.Context) {
	id := c.Param("id")

	post, err := h.svc.GetOne(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewPostResponse(post, replyDepth))
}

// Create handles POST /posts
func (h *PostHandler) Create(c *gin.Context) {
	raw, err := readBody(c)
	if err != nil {
		abortWithError(c, bodyError(err))
		return
	}

	req, result := ValidateCreatePost(raw)
	if !result.Valid() {
		abortWithError(c, result.Err())
		return
	}

	post, err := h.svc.Create(c.Request.Context(), req.input())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewPostResponse(post, replyDepth))
}

// Update handles PUT /posts/:id
func (h *PostHandler) Update(c *gin.Context) {
	id := c.Param("id")
	raw, err := readBody(c)
	if err != nil {
		abortWithError(c, bodyError(err))
		return
	}

	req, result := ValidateUpdatePost(raw)
	if !result.Valid() {
		abortWithError(c, result.Err())
		return
	}

	post, err := h.svc.Update(c.Request.Context(), id, req.input())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewPostResponse(post, replyDepth))
}

// Delete handles DELETE /posts/:id and answers with the removed post
func (h *PostHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	post, err := h.svc.Delete(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	h.logger.Info("Post deleted", zap.String("id", id))
	c.JSON(http.StatusOK, NewPostResponse(post, 0))
}

// Replies handles GET /posts/:id/replies
func (h *PostHandler) Replies(c *gin.Context) {
	id := c.Param("id")

	replies, err := h.svc.ListReplies(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewPostResponses(replies, replyDepth))
}
