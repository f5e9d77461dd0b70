// Package web serves the HTML frontend. Every page is rendered on the server
// from data fetched through the API client.
package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/postboard/internal/client"
	"github.com/steemit/postboard/pkg/logging"
)

const (
	sessionName = "postboard_session"

	msgDeleted     = "Deleted successfully."
	msgUnavailable = "Cannot connect to server. Please make sure the backend is running."
)

// API is the subset of the API client the pages use
type API interface {
	ListPosts(ctx context.Context) ([]client.Post, error)
	GetPost(ctx context.Context, id string) (*client.Post, error)
	CreatePost(ctx context.Context, in client.NewPost) (*client.Post, error)
	UpdatePost(ctx context.Context, id, content string) (*client.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// page holds what the layout needs on every page
type page struct {
	Title    string
	Flashes  []string
	Error    string
	RetryURL string
}

type indexPage struct {
	page
	Posts []client.Post
}

type detailPage struct {
	page
	Post *client.Post
}

type formPage struct {
	page
	Action      string
	Submit      string
	CancelURL   string
	Editing     bool
	PosterName  string
	Content     string
	Parent      *client.Post
	FieldErrors []client.FieldError
}

// Handler serves the frontend pages
type Handler struct {
	api    API
	logger *zap.Logger
}

// NewHandler creates a new page handler
func NewHandler(api API) *Handler {
	return &Handler{
		api:    api,
		logger: logging.WithComponent("web"),
	}
}

// NewEngine builds a gin engine serving the frontend
func NewEngine(h *Handler, sessionSecret string) (*gin.Engine, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.HTMLRender = renderer

	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	engine.Use(sessions.Sessions(sessionName, store))

	h.Register(engine)
	return engine, nil
}

// Register mounts the page routes
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/", h.Index)
	r.GET("/posts/new", h.NewPost)
	r.POST("/posts", h.CreatePost)
	r.GET("/posts/:id", h.Detail)
	r.GET("/posts/:id/edit", h.EditPost)
	r.POST("/posts/:id/edit", h.UpdatePost)
	r.GET("/posts/:id/reply", h.ReplyPost)
	r.POST("/posts/:id/reply", h.CreateReply)
	r.POST("/posts/:id/delete", h.DeletePost)
}

func (h *Handler) newPage(c *gin.Context, title string) page {
	return page{Title: title, Flashes: popFlashes(c)}
}

// fail fills the error block of p from err
func (h *Handler) fail(c *gin.Context, p *page, err error) {
	h.logger.Warn("API call failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	p.Error = errorMessage(err)
	p.RetryURL = c.Request.URL.RequestURI()
}

func errorMessage(err error) string {
	if client.IsUnavailable(err) {
		return msgUnavailable
	}
	return err.Error()
}

func statusFor(err error) int {
	var se *client.StatusError
	if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
		return se.StatusCode
	}
	return http.StatusBadGateway
}

func addFlash(c *gin.Context, msg string) {
	session := sessions.Default(c)
	session.AddFlash(msg)
	_ = session.Save()
}

func popFlashes(c *gin.Context) []string {
	session := sessions.Default(c)
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = session.Save()

	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// topLevel keeps posts that answer no other post
func topLevel(list []client.Post) []client.Post {
	out := make([]client.Post, 0, len(list))
	for _, p := range list {
		if p.IsTopLevel() {
			out = append(out, p)
		}
	}
	return out
}

// Index lists top-level posts with their immediate replies
func (h *Handler) Index(c *gin.Context) {
	data := indexPage{page: h.newPage(c, "Posts")}

	list, err := h.api.ListPosts(c.Request.Context())
	if err != nil {
		h.fail(c, &data.page, err)
		c.HTML(statusFor(err), "index.html", data)
		return
	}

	data.Posts = topLevel(list)
	c.HTML(http.StatusOK, "index.html", data)
}

// Detail shows one post with its parent and replies
func (h *Handler) Detail(c *gin.Context) {
	id := c.Param("id")
	data := detailPage{page: h.newPage(c, "Post")}

	post, err := h.api.GetPost(c.Request.Context(), id)
	if err != nil {
		if client.IsNotFound(err) {
			c.Redirect(http.StatusFound, "/")
			return
		}
		h.fail(c, &data.page, err)
		c.HTML(statusFor(err), "detail.html", data)
		return
	}

	data.Title = "Post by " + post.PosterName
	data.Post = post
	c.HTML(http.StatusOK, "detail.html", data)
}

// NewPost shows the create form
func (h *Handler) NewPost(c *gin.Context) {
	c.HTML(http.StatusOK, "form.html", formPage{
		page:      h.newPage(c, "New post"),
		Action:    "/posts",
		Submit:    "Post",
		CancelURL: "/",
	})
}

// CreatePost submits the create form
func (h *Handler) CreatePost(c *gin.Context) {
	form := formPage{
		page:       h.newPage(c, "New post"),
		Action:     "/posts",
		Submit:     "Post",
		CancelURL:  "/",
		PosterName: c.PostForm("posterName"),
		Content:    c.PostForm("content"),
	}

	_, err := h.api.CreatePost(c.Request.Context(), client.NewPost{
		PosterName: form.PosterName,
		Content:    form.Content,
	})
	if err != nil {
		h.formError(c, &form, err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/")
}

// EditPost shows the edit form
func (h *Handler) EditPost(c *gin.Context) {
	id := c.Param("id")
	form := formPage{
		page:      h.newPage(c, "Edit post"),
		Action:    "/posts/" + id + "/edit",
		Submit:    "Save",
		CancelURL: "/posts/" + id,
		Editing:   true,
	}

	post, err := h.api.GetPost(c.Request.Context(), id)
	if err != nil {
		if client.IsNotFound(err) {
			c.Redirect(http.StatusFound, "/")
			return
		}
		h.fail(c, &form.page, err)
		c.HTML(statusFor(err), "form.html", form)
		return
	}

	form.PosterName = post.PosterName
	form.Content = post.Content
	c.HTML(http.StatusOK, "form.html", form)
}

// UpdatePost submits the edit form
func (h *Handler) UpdatePost(c *gin.Context) {
	id := c.Param("id")
	form := formPage{
		page:      h.newPage(c, "Edit post"),
		Action:    "/posts/" + id + "/edit",
		Submit:    "Save",
		CancelURL: "/posts/" + id,
		Editing:   true,
		Content:   c.PostForm("content"),
	}

	if _, err := h.api.UpdatePost(c.Request.Context(), id, form.Content); err != nil {
		if client.IsNotFound(err) {
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		h.formError(c, &form, err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/posts/"+id)
}

// ReplyPost shows the reply form under the parent post
func (h *Handler) ReplyPost(c *gin.Context) {
	id := c.Param("id")
	form := formPage{
		page:      h.newPage(c, "Reply"),
		Action:    "/posts/" + id + "/reply",
		Submit:    "Reply",
		CancelURL: "/posts/" + id,
	}

	parent, err := h.api.GetPost(c.Request.Context(), id)
	if err != nil {
		if client.IsNotFound(err) {
			c.Redirect(http.StatusFound, "/")
			return
		}
		h.fail(c, &form.page, err)
		c.HTML(statusFor(err), "form.html", form)
		return
	}

	form.Parent = parent
	c.HTML(http.StatusOK, "form.html", form)
}

// CreateReply submits the reply form
func (h *Handler) CreateReply(c *gin.Context) {
	id := c.Param("id")
	form := formPage{
		page:       h.newPage(c, "Reply"),
		Action:     "/posts/" + id + "/reply",
		Submit:     "Reply",
		CancelURL:  "/posts/" + id,
		PosterName: c.PostForm("posterName"),
		Content:    c.PostForm("content"),
	}

	_, err := h.api.CreatePost(c.Request.Context(), client.NewPost{
		PosterName: form.PosterName,
		Content:    form.Content,
		ReplyToID:  &id,
	})
	if err != nil {
		h.formError(c, &form, err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/posts/"+id)
}

// DeletePost deletes a post and returns to the list
func (h *Handler) DeletePost(c *gin.Context) {
	id := c.Param("id")

	if err := h.api.DeletePost(c.Request.Context(), id); err != nil {
		if client.IsNotFound(err) {
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		data := detailPage{page: h.newPage(c, "Post")}
		h.fail(c, &data.page, err)
		data.RetryURL = "/posts/" + id
		c.HTML(statusFor(err), "detail.html", data)
		return
	}

	addFlash(c, msgDeleted)
	c.Redirect(http.StatusSeeOther, "/")
}

// formError re-renders a form with the API's complaint
func (h *Handler) formError(c *gin.Context, form *formPage, err error) {
	var se *client.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusBadRequest {
		form.FieldErrors = se.Details
		if len(se.Details) == 0 {
			form.Error = se.Message
		}
		c.HTML(http.StatusBadRequest, "form.html", form)
		return
	}

	h.fail(c, &form.page, err)
	form.RetryURL = ""
	c.HTML(statusFor(err), "form.html", form)
}
