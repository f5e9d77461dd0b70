package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/steemit/postboard/internal/models"
	"github.com/steemit/postboard/internal/posts"
)

// ValidationResult collects the field errors of one request
type ValidationResult struct {
	Errors []posts.FieldError
}

// Valid reports whether no field was rejected
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) add(field, message string) {
	r.Errors = append(r.Errors, posts.FieldError{Field: field, Message: message})
}

// Err returns the result as a *posts.ValidationError, or nil when valid
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return &posts.ValidationError{Fields: r.Errors}
}

// CreatePostRequest is the body of POST /posts
type CreatePostRequest struct {
	PosterName *string `json:"posterName"`
	Content    *string `json:"content"`
	ReplyToID  *string `json:"replyToId,omitempty"`
}

// UpdatePostRequest is the body of PUT /posts/:id
type UpdatePostRequest struct {
	Content *string `json:"content"`
}

// decodeObject splits a JSON object into its fields. Only the fields a
// request declares are read later, others are ignored.
func decodeObject(raw []byte, result *ValidationResult) map[string]json.RawMessage {
	fields := map[string]json.RawMessage{}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return fields
	}
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		result.add("body", "must be a JSON object")
		return nil
	}
	return fields
}

// stringField reads an optional string; null counts as absent
func stringField(fields map[string]json.RawMessage, name string, result *ValidationResult) *string {
	raw, ok := fields[name]
	if !ok || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		result.add(name, "must be a string")
		return nil
	}
	return &s
}

func requireNotEmpty(value *string, name string, result *ValidationResult) {
	if value == nil || strings.TrimSpace(*value) == "" {
		result.add(name, "should not be empty")
	}
}

// ValidateCreatePost decodes and checks a create request
func ValidateCreatePost(raw []byte) (CreatePostRequest, ValidationResult) {
	var (
		req    CreatePostRequest
		result ValidationResult
	)

	fields := decodeObject(raw, &result)
	if fields == nil {
		return req, result
	}

	before := len(result.Errors)
	req.PosterName = stringField(fields, "posterName", &result)
	if len(result.Errors) == before {
		requireNotEmpty(req.PosterName, "posterName", &result)
	}
	if req.PosterName != nil && utf8.RuneCountInString(*req.PosterName) > models.MaxPosterNameLength {
		result.add("posterName", fmt.Sprintf("must be shorter than or equal to %d characters", models.MaxPosterNameLength))
	}

	before = len(result.Errors)
	req.Content = stringField(fields, "content", &result)
	if len(result.Errors) == before {
		requireNotEmpty(req.Content, "content", &result)
	}

	req.ReplyToID = stringField(fields, "replyToId", &result)
	if req.ReplyToID != nil && strings.TrimSpace(*req.ReplyToID) == "" {
		result.add("replyToId", "should not be empty")
	}

	return req, result
}

// ValidateUpdatePost decodes and checks an update request
func ValidateUpdatePost(raw []byte) (UpdatePostRequest, ValidationResult) {
	var (
		req    UpdatePostRequest
		result ValidationResult
	)

	fields := decodeObject(raw, &result)
	if fields == nil {
		return req, result
	}

	before := len(result.Errors)
	req.Content = stringField(fields, "content", &result)
	if len(result.Errors) == before {
		requireNotEmpty(req.Content, "content", &result)
	}

	return req, result
}

// ValidateID checks a post id taken from RPC params
func ValidateID(id string) ValidationResult {
	var result ValidationResult
	if strings.TrimSpace(id) == "" {
		result.add("id", "should not be empty")
	}
	return result
}

func (r CreatePostRequest) input() posts.CreateInput {
	return posts.CreateInput{
		PosterName: deref(r.PosterName),
		Content:    deref(r.Content),
		ReplyToID:  r.ReplyToID,
	}
}

func (r UpdatePostRequest) input() posts.UpdateInput {
	return posts.UpdateInput{Content: deref(r.Content)}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
