package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steemit/postboard/internal/db"
	"github.com/steemit/postboard/internal/models"
	"github.com/steemit/postboard/internal/posts"
	"github.com/steemit/postboard/internal/testutil"
	"github.com/steemit/postboard/pkg/config"
)

var testOrigins = []string{"http://localhost:3000", "http://localhost:3001", "http://localhost:3002"}

type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database := testutil.NewTestDB(t)
	repo := db.NewPostRepository(db.NewRepository(database.DB))
	svc := posts.NewService(repo)

	return NewRouter(svc, database, &config.ServerConfig{AllowedOrigins: testOrigins}).Engine()
}

func doRequest(engine http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createPost(t *testing.T, engine http.Handler, body string) PostResponse {
	t.Helper()
	w := doRequest(engine, http.MethodPost, "/posts", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[PostResponse](t, w)
}

func TestCreatePost(t *testing.T) {
	engine := newTestEngine(t)

	w := doRequest(engine, http.MethodPost, "/posts", `{"posterName":"Alice","content":"Hello","extra":"ignored"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	raw := decode[map[string]interface{}](t, w)
	assert.NotEmpty(t, raw["id"])
	assert.Equal(t, "Alice", raw["posterName"])
	assert.Equal(t, "Hello", raw["content"])
	assert.Nil(t, raw["replyToId"])
	assert.Contains(t, raw, "replyToId")
	assert.Equal(t, raw["createdAt"], raw["updatedAt"])
	assert.Equal(t, []interface{}{}, raw["replies"])
	assert.NotContains(t, raw, "extra")
}

func TestCreatePost_Validation(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{name: "empty body", body: "", fields: []string{"posterName", "content"}},
		{name: "missing content", body: `{"posterName":"Alice"}`, fields: []string{"content"}},
		{name: "blank poster", body: `{"posterName":"  ","content":"Hello"}`, fields: []string{"posterName"}},
		{name: "wrong types", body: `{"posterName":5,"content":true}`, fields: []string{"posterName", "content"}},
		{name: "poster too long", body: `{"posterName":"` + strings.Repeat("x", 101) + `","content":"Hello"}`, fields: []string{"posterName"}},
		{name: "not an object", body: `[1,2]`, fields: []string{"body"}},
		{name: "malformed", body: `{"posterName":`, fields: []string{"body"}},
		{name: "unknown parent", body: `{"posterName":"Bob","content":"Hi","replyToId":"` + uuid.NewString() + `"}`, fields: []string{"replyToId"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(engine, http.MethodPost, "/posts", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

			body := decode[Error](t, w)
			assert.Equal(t, http.StatusBadRequest, body.Code)
			assert.Equal(t, "Bad Request", body.Status)

			got := make([]string, 0, len(body.Details))
			for _, d := range body.Details {
				got = append(got, d.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestThreadScenario(t *testing.T) {
	engine := newTestEngine(t)

	p1 := createPost(t, engine, `{"posterName":"Alice","content":"Hello"}`)
	p2 := createPost(t, engine, `{"posterName":"Bob","content":"Hi","replyToId":"`+p1.ID+`"}`)
	require.NotNil(t, p2.ReplyToID)
	assert.Equal(t, p1.ID, *p2.ReplyToID)

	w := doRequest(engine, http.MethodGet, "/posts/"+p1.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[PostResponse](t, w)
	require.NotNil(t, got.Replies)
	require.Len(t, *got.Replies, 1)
	assert.Equal(t, p2.ID, (*got.Replies)[0].ID)
	assert.Nil(t, got.ReplyTo)

	w = doRequest(engine, http.MethodGet, "/posts/"+p2.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	reply := decode[PostResponse](t, w)
	require.NotNil(t, reply.ReplyTo)
	assert.Equal(t, p1.ID, reply.ReplyTo.ID)

	w = doRequest(engine, http.MethodGet, "/posts/"+p1.ID+"/replies", "")
	require.Equal(t, http.StatusOK, w.Code)
	replies := decode[[]PostResponse](t, w)
	require.Len(t, replies, 1)
	assert.Equal(t, p2.ID, replies[0].ID)
}

func TestListPosts(t *testing.T) {
	engine := newTestEngine(t)

	w := doRequest(engine, http.MethodGet, "/posts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	first := createPost(t, engine, `{"posterName":"Alice","content":"one"}`)
	second := createPost(t, engine, `{"posterName":"Bob","content":"two"}`)

	w = doRequest(engine, http.MethodGet, "/posts", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]PostResponse](t, w)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestGetPost_NotFound(t *testing.T) {
	engine := newTestEngine(t)
	id := uuid.NewString()

	for _, path := range []string{"/posts/" + id, "/posts/" + id + "/replies"} {
		w := doRequest(engine, http.MethodGet, path, "")
		require.Equal(t, http.StatusNotFound, w.Code, path)

		body := decode[Error](t, w)
		assert.Equal(t, "Post with ID "+id+" not found", body.Message)
		assert.Equal(t, "Not Found", body.Status)
	}
}

func TestGetPost_BlankID(t *testing.T) {
	engine := newTestEngine(t)

	for _, path := range []string{"/posts/%20", "/posts/%20/replies"} {
		w := doRequest(engine, http.MethodGet, path, "")
		require.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "Post with ID   not found", decode[Error](t, w).Message)
	}
}

func TestCreatePost_BodyTooLarge(t *testing.T) {
	engine := newTestEngine(t)
	body := `{"posterName":"Alice","content":"` + strings.Repeat("a", maxBodyBytes) + `"}`

	w := doRequest(engine, http.MethodPost, "/posts", body)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	resp := decode[Error](t, w)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
	assert.Empty(t, resp.Details)

	created := createPost(t, engine, `{"posterName":"Alice","content":"Hello"}`)
	w = doRequest(engine, http.MethodPut, "/posts/"+created.ID, `{"content":"`+strings.Repeat("b", maxBodyBytes)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestUpdatePost(t *testing.T) {
	engine := newTestEngine(t)
	created := createPost(t, engine, `{"posterName":"Alice","content":"Hello"}`)

	w := doRequest(engine, http.MethodPut, "/posts/"+created.ID, `{"content":"Edited","posterName":"Mallory"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[PostResponse](t, w)
	assert.Equal(t, "Edited", updated.Content)
	assert.Equal(t, "Alice", updated.PosterName)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))
	assert.NotNil(t, updated.Replies)

	w = doRequest(engine, http.MethodPut, "/posts/"+created.ID, `{"content":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(engine, http.MethodPut, "/posts/"+uuid.NewString(), `{"content":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeletePost(t *testing.T) {
	engine := newTestEngine(t)
	created := createPost(t, engine, `{"posterName":"Alice","content":"Hello"}`)

	w := doRequest(engine, http.MethodDelete, "/posts/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	deleted := decode[PostResponse](t, w)
	assert.Equal(t, created.ID, deleted.ID)

	w = doRequest(engine, http.MethodGet, "/posts/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(engine, http.MethodDelete, "/posts/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBanner(t *testing.T) {
	engine := newTestEngine(t)

	w := doRequest(engine, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]interface{}](t, w)
	assert.Equal(t, "1.0.0", body["version"])
	endpoints, ok := body["endpoints"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/posts", endpoints["posts"])
	assert.Equal(t, "/health", endpoints["health"])
}

func TestHealth(t *testing.T) {
	engine := newTestEngine(t)

	w := doRequest(engine, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])

	gin.SetMode(gin.TestMode)
	failing := healthFunc(func(context.Context) error { return errors.New("connection refused") })
	broken := NewRouter(&stubService{}, failing, &config.ServerConfig{AllowedOrigins: testOrigins}).Engine()

	w = doRequest(broken, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body = decode[map[string]string](t, w)
	assert.Equal(t, "error", body["status"])
}

func TestHealth_Cache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	up := healthFunc(func(context.Context) error { return nil })
	down := healthFunc(func(context.Context) error { return errors.New("redis: connection refused") })
	cfg := &config.ServerConfig{AllowedOrigins: testOrigins}

	engine := NewRouter(&stubService{}, up, cfg).WithCache(up).Engine()
	w := doRequest(engine, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["cache"])

	engine = NewRouter(&stubService{}, up, cfg).WithCache(down).Engine()
	w = doRequest(engine, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]string](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "error", body["cache"])
}

func TestCORS(t *testing.T) {
	engine := newTestEngine(t)

	req := httptest.NewRequest(http.MethodOptions, "/posts", nil)
	req.Header.Set("Origin", "http://localhost:3001")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3001", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)

	req = httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	engine := newTestEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	w = doRequest(engine, http.MethodGet, "/health", "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestNoRoute(t *testing.T) {
	engine := newTestEngine(t)

	w := doRequest(engine, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	body := decode[Error](t, w)
	assert.Equal(t, "Cannot GET /nope", body.Message)
}

// stubService fails every call with err
type stubService struct {
	err error
}

func (s *stubService) Create(context.Context, posts.CreateInput) (*models.Post, error) {
	return nil, s.err
}

func (s *stubService) ListAll(context.Context) ([]models.Post, error) { return nil, s.err }

func (s *stubService) GetOne(context.Context, string) (*models.Post, error) { return nil, s.err }

func (s *stubService) Update(context.Context, string, posts.UpdateInput) (*models.Post, error) {
	return nil, s.err
}

func (s *stubService) Delete(context.Context, string) (*models.Post, error) { return nil, s.err }

func (s *stubService) ListReplies(context.Context, string) ([]models.Post, error) {
	return nil, s.err
}

func TestInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &stubService{err: &posts.StorageError{Op: "list", Err: errors.New("pq: relation does not exist")}}
	engine := NewRouter(svc, nil, &config.ServerConfig{AllowedOrigins: testOrigins}).Engine()

	w := doRequest(engine, http.MethodGet, "/posts", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	body := decode[Error](t, w)
	assert.Equal(t, "Internal server error", body.Message)
	assert.NotContains(t, w.Body.String(), "pq:")
}
