// Package client is a typed client for the postboard REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/steemit/postboard/pkg/config"
	"github.com/steemit/postboard/pkg/logging"
	"github.com/steemit/postboard/pkg/telemetry"
)

// ErrUnavailable is wrapped by every error caused by the API not answering
var ErrUnavailable = errors.New("api unavailable")

// Post is a post as returned by the API
type Post struct {
	ID         string    `json:"id"`
	PosterName string    `json:"posterName"`
	Content    string    `json:"content"`
	ReplyToID  *string   `json:"replyToId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	ReplyTo    *Post     `json:"replyTo,omitempty"`
	Replies    []Post    `json:"replies,omitempty"`
}

// IsTopLevel reports whether the post answers no other post
func (p *Post) IsTopLevel() bool {
	return p.ReplyToID == nil || *p.ReplyToID == ""
}

// NewPost is the body of a create request
type NewPost struct {
	PosterName string  `json:"posterName"`
	Content    string  `json:"content"`
	ReplyToID  *string `json:"replyToId,omitempty"`
}

// FieldError describes one field rejected by the API
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// StatusError is returned for every non-2xx response
type StatusError struct {
	StatusCode int          `json:"statusCode"`
	Status     string       `json:"error"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error! status: %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// IsUnavailable reports whether the API could not be reached
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Health is the body of GET /health
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Cache     string `json:"cache,omitempty"`
}

// Client calls the postboard API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client for the configured API with a traced transport
func New(cfg *config.WebConfig) *Client {
	return NewWithHTTPClient(cfg.APIURL, &http.Client{
		Timeout:   cfg.APITimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

// NewWithHTTPClient creates a client that sends requests through hc
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		logger:     logging.WithComponent("api-client"),
	}
}

// ListPosts fetches every post, newest first
func (c *Client) ListPosts(ctx context.Context) ([]Post, error) {
	var out []Post
	if err := c.do(ctx, http.MethodGet, "/posts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPost fetches a post with its parent and replies
func (c *Client) GetPost(ctx context.Context, id string) (*Post, error) {
	var out Post
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePost stores a new post or reply
func (c *Client) CreatePost(ctx context.Context, in NewPost) (*Post, error) {
	var out Post
	if err := c.do(ctx, http.MethodPost, "/posts", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePost replaces the content of a post
func (c *Client) UpdatePost(ctx context.Context, id, content string) (*Post, error) {
	var out Post
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPut, "/posts/"+url.PathEscape(id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePost removes a post
func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(id), nil, nil)
}

// ListReplies fetches the direct replies of a post
func (c *Client) ListReplies(ctx context.Context, id string) ([]Post, error) {
	var out []Post
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(id)+"/replies", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health queries the API health endpoint. A 503 is returned as a StatusError.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	ctx, span := telemetry.StartSpan(ctx, "client "+method+" "+path)
	defer span.End()

	err := c.roundTrip(ctx, method, path, in, out)
	telemetry.RecordError(span, err)
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{}
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, se)
		}
		se.StatusCode = resp.StatusCode
		return se
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
