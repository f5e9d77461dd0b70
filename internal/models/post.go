package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxPosterNameLength bounds Post.PosterName
const MaxPosterNameLength = 100

// Post is a forum post. A post with ReplyToID set is a reply to that post.
type Post struct {
	ID         string    `gorm:"type:varchar(36);primaryKey;column:id" json:"id"`
	PosterName string    `gorm:"type:varchar(100);not null;column:poster_name" json:"posterName"`
	Content    string    `gorm:"type:text;not null;column:content" json:"content"`
	ReplyToID  *string   `gorm:"type:varchar(36);index;column:reply_to_id" json:"replyToId"`
	CreatedAt  time.Time `gorm:"not null;index;column:created_at" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"not null;column:updated_at" json:"updatedAt"`

	// Relationships
	ReplyTo *Post  `gorm:"foreignKey:ReplyToID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"replyTo,omitempty"`
	Replies []Post `gorm:"foreignKey:ReplyToID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"replies,omitempty"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// BeforeCreate assigns a time-ordered id to new posts
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID != "" {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	p.ID = id.String()
	return nil
}

// IsReply reports whether the post answers another post
func (p *Post) IsReply() bool {
	return p.ReplyToID != nil && *p.ReplyToID != ""
}
