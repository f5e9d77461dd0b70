package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/steemit/postboard/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// oldestFirst orders replies by creation; ids are time ordered and break ties
func oldestFirst(tx *gorm.DB) *gorm.DB {
	return tx.Order("created_at ASC").Order("id ASC")
}

// withReplies loads replies and replies of replies
func withReplies(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Replies", oldestFirst).
		Preload("Replies.Replies", oldestFirst)
}

// GetByID retrieves a post without relations
func (r *PostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// GetWithReplies retrieves a post with two levels of replies
func (r *PostRepository) GetWithReplies(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := withReplies(r.db.WithContext(ctx)).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// GetThread retrieves a post with its parent and two levels of replies
func (r *PostRepository) GetThread(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := withReplies(r.db.WithContext(ctx)).
		Preload("ReplyTo").
		Where("id = ?", id).
		First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// List retrieves every post, newest first, each with two levels of replies
func (r *PostRepository) List(ctx context.Context) ([]models.Post, error) {
	posts := []models.Post{}
	if err := withReplies(r.db.WithContext(ctx)).
		Order("created_at DESC").
		Order("id DESC").
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// ListReplies retrieves the direct replies of a post, oldest first
func (r *PostRepository) ListReplies(ctx context.Context, parentID string) ([]models.Post, error) {
	posts := []models.Post{}
	if err := oldestFirst(withReplies(r.db.WithContext(ctx))).
		Where("reply_to_id = ?", parentID).
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// Exists reports whether a post with the given id is stored
func (r *PostRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create creates a new post. Relations on the struct are never written.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error
}

// UpdateContent overwrites the content of a post and returns the number of
// rows touched
func (r *PostRepository) UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":    content,
			"updated_at": updatedAt,
		})
	return result.RowsAffected, result.Error
}

// Delete removes a post and returns the number of rows removed
func (r *PostRepository) Delete(ctx context.Context, id string) (int64, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	return result.RowsAffected, result.Error
}
