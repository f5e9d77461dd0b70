package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
)

// PostMethods exposes the post operations over JSON-RPC
type PostMethods struct {
	svc PostService
}

// NewPostMethods creates the JSON-RPC post methods
func NewPostMethods(svc PostService) *PostMethods {
	return &PostMethods{svc: svc}
}

// Register adds every posts.* method to the handler
func (m *PostMethods) Register(h *JSONRPCHandler) {
	h.RegisterMethod("posts.list", m.List)
	h.RegisterMethod("posts.get", m.Get)
	h.RegisterMethod("posts.create", m.Create)
	h.RegisterMethod("posts.update", m.Update)
	h.RegisterMethod("posts.delete", m.Delete)
	h.RegisterMethod("posts.replies", m.Replies)
}

// objectParams returns params as a JSON object. Absent params are treated as
// an empty object.
func objectParams(params json.RawMessage) []byte {
	if len(params) == 0 {
		return []byte("{}")
	}
	return params
}

// idParam accepts {"id": "..."} or ["..."]
func idParam(params json.RawMessage) (string, error) {
	var positional []string
	if err := json.Unmarshal(params, &positional); err == nil {
		if len(positional) > 0 {
			return positional[0], ValidateID(positional[0]).Err()
		}
		return "", ValidateID("").Err()
	}

	var result ValidationResult
	fields := decodeObject(objectParams(params), &result)
	if fields == nil {
		return "", result.Err()
	}
	id := deref(stringField(fields, "id", &result))
	if !result.Valid() {
		return "", result.Err()
	}
	return id, ValidateID(id).Err()
}

// List returns every post
func (m *PostMethods) List(c *gin.Context, _ json.RawMessage) (interface{}, error) {
	list, err := m.svc.ListAll(c.Request.Context())
	if err != nil {
		return nil, err
	}
	return NewPostResponses(list, replyDepth), nil
}

// Get returns one post with its thread
func (m *PostMethods) Get(c *gin.Context, params json.RawMessage) (interface{}, error) {
	id, err := idParam(params)
	if err != nil {
		return nil, err
	}
	post, err := m.svc.GetOne(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return NewPostResponse(post, replyDepth), nil
}

// Create stores a new post
func (m *PostMethods) Create(c *gin.Context, params json.RawMessage) (interface{}, error) {
	req, result := ValidateCreatePost(objectParams(params))
	if !result.Valid() {
		return nil, result.Err()
	}
	post, err := m.svc.Create(c.Request.Context(), req.input())
	if err != nil {
		return nil, err
	}
	return NewPostResponse(post, replyDepth), nil
}

// Update replaces the content of a post. Params carry id and content.
func (m *PostMethods) Update(c *gin.Context, params json.RawMessage) (interface{}, error) {
	raw := objectParams(params)

	var result ValidationResult
	fields := decodeObject(raw, &result)
	if fields == nil {
		return nil, result.Err()
	}
	id := deref(stringField(fields, "id", &result))
	if result.Valid() {
		result = ValidateID(id)
	}

	req, bodyResult := ValidateUpdatePost(raw)
	result.Errors = append(result.Errors, bodyResult.Errors...)
	if !result.Valid() {
		return nil, result.Err()
	}

	post, err := m.svc.Update(c.Request.Context(), id, req.input())
	if err != nil {
		return nil, err
	}
	return NewPostResponse(post, replyDepth), nil
}

// Delete removes a post and returns it
func (m *PostMethods) Delete(c *gin.Context, params json.RawMessage) (interface{}, error) {
	id, err := idParam(params)
	if err != nil {
		return nil, err
	}
	post, err := m.svc.Delete(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return NewPostResponse(post, 0), nil
}

// Replies lists the direct replies of a post
func (m *PostMethods) Replies(c *gin.Context, params json.RawMessage) (interface{}, error) {
	id, err := idParam(params)
	if err != nil {
		return nil, err
	}
	replies, err := m.svc.ListReplies(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return NewPostResponses(replies, replyDepth), nil
}
