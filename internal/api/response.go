package api

import (
	"time"

	"github.com/steemit/postboard/internal/models"
)

// replyDepth is how many levels of replies every post response carries
const replyDepth = 2

// PostResponse is the JSON shape of a post. Replies is present down to the
// resolved depth, as an empty array when the post has none.
type PostResponse struct {
	ID         string          `json:"id"`
	PosterName string          `json:"posterName"`
	Content    string          `json:"content"`
	ReplyToID  *string         `json:"replyToId"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
	ReplyTo    *PostResponse   `json:"replyTo,omitempty"`
	Replies    *[]PostResponse `json:"replies,omitempty"`
}

// NewPostResponse maps a post and depth levels of its replies
func NewPostResponse(p *models.Post, depth int) PostResponse {
	resp := PostResponse{
		ID:         p.ID,
		PosterName: p.PosterName,
		Content:    p.Content,
		ReplyToID:  p.ReplyToID,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	if p.ReplyTo != nil {
		parent := NewPostResponse(p.ReplyTo, 0)
		resp.ReplyTo = &parent
	}
	if depth > 0 {
		replies := NewPostResponses(p.Replies, depth-1)
		resp.Replies = &replies
	}
	return resp
}

// NewPostResponses maps a list of posts
func NewPostResponses(list []models.Post, depth int) []PostResponse {
	out := make([]PostResponse, 0, len(list))
	for i := range list {
		out = append(out, NewPostResponse(&list[i], depth))
	}
	return out
}
