package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steemit/postboard/internal/api"
	"github.com/steemit/postboard/internal/db"
	"github.com/steemit/postboard/internal/posts"
	"github.com/steemit/postboard/internal/testutil"
	"github.com/steemit/postboard/pkg/config"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database := testutil.NewTestDB(t)
	repo := db.NewPostRepository(db.NewRepository(database.DB))
	router := api.NewRouter(posts.NewService(repo), database, &config.ServerConfig{
		AllowedOrigins: []string{"http://localhost:3001"},
	})

	srv := httptest.NewServer(router.Engine())
	t.Cleanup(srv.Close)

	return New(&config.WebConfig{APIURL: srv.URL + "/", APITimeout: 5 * time.Second})
}

func TestClient_PostLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	list, err := c.ListPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	parent, err := c.CreatePost(ctx, NewPost{PosterName: "Alice", Content: "Hello"})
	require.NoError(t, err)
	assert.True(t, parent.IsTopLevel())

	reply, err := c.CreatePost(ctx, NewPost{PosterName: "Bob", Content: "Hi", ReplyToID: &parent.ID})
	require.NoError(t, err)
	assert.False(t, reply.IsTopLevel())

	got, err := c.GetPost(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, got.Replies, 1)
	assert.Equal(t, reply.ID, got.Replies[0].ID)

	detail, err := c.GetPost(ctx, reply.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.ReplyTo)
	assert.Equal(t, parent.ID, detail.ReplyTo.ID)

	replies, err := c.ListReplies(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, replies, 1)

	updated, err := c.UpdatePost(ctx, parent.ID, "Edited")
	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Content)

	list, err = c.ListPosts(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, c.DeletePost(ctx, reply.ID))
	_, err = c.GetPost(ctx, reply.ID)
	assert.True(t, IsNotFound(err))
}

func TestClient_Errors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetPost(ctx, uuid.NewString())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsUnavailable(err))
	assert.Contains(t, err.Error(), "not found")

	_, err = c.CreatePost(ctx, NewPost{PosterName: "", Content: "Hello"})
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	require.Len(t, se.Details, 1)
	assert.Equal(t, "posterName", se.Details[0].Field)

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
}

func TestClient_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewWithHTTPClient(addr, &http.Client{Timeout: time.Second})
	_, err := c.ListPosts(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.False(t, IsNotFound(err))
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := NewWithHTTPClient(srv.URL, srv.Client())
	err := c.DeletePost(context.Background(), "x")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, "HTTP error! status: 502", err.Error())
}
