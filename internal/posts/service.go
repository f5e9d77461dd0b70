// Package posts implements the post store: creation, threaded retrieval,
// content updates and deletion of forum posts.
package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/steemit/postboard/internal/cache"
	"github.com/steemit/postboard/internal/models"
	"github.com/steemit/postboard/pkg/logging"
	"github.com/steemit/postboard/pkg/telemetry"
)

// Repository is the storage the service runs against. Reads return (nil, nil)
// when the post does not exist.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.Post, error)
	GetWithReplies(ctx context.Context, id string) (*models.Post, error)
	GetThread(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context) ([]models.Post, error)
	ListReplies(ctx context.Context, parentID string) ([]models.Post, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, post *models.Post) error
	UpdateContent(ctx context.Context, id, content string, updatedAt time.Time) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// CreateInput holds the fields of a new post
type CreateInput struct {
	PosterName string
	Content    string
	ReplyToID  *string
}

// UpdateInput holds the editable fields of a post
type UpdateInput struct {
	Content string
}

const (
	generationKey   = "posts:generation"
	defaultCacheTTL = 30 * time.Second
)

// Service implements post operations
type Service struct {
	repo     Repository
	cache    *cache.Cache
	cacheTTL time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithCache enables read-through caching of list and detail reads
func WithCache(c *cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithClock replaces the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new post service
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		cacheTTL: defaultCacheTTL,
		now:      time.Now,
		logger:   logging.WithComponent("posts"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// timestamp returns the current time at the precision every supported
// store and the JSON encoding keep
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// Create stores a new post, optionally as a reply to an existing one
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.Create")
	defer span.End()

	post, err := s.create(ctx, in)
	telemetry.RecordError(span, err)
	return post, err
}

func (s *Service) create(ctx context.Context, in CreateInput) (*models.Post, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	var replyTo *string
	if in.ReplyToID != nil {
		parentID := strings.TrimSpace(*in.ReplyToID)
		exists, err := s.repo.Exists(ctx, parentID)
		if err != nil {
			return nil, &StorageError{Op: "create", Err: err}
		}
		if !exists {
			return nil, NewValidationError("replyToId", fmt.Sprintf("Post with ID %s does not exist", parentID))
		}
		replyTo = &parentID
	}

	now := s.timestamp()
	post := &models.Post{
		PosterName: in.PosterName,
		Content:    in.Content,
		ReplyToID:  replyTo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, post); err != nil {
		// the parent can vanish between the check and the insert
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, NewValidationError("replyToId", fmt.Sprintf("Post with ID %s does not exist", *replyTo))
		}
		return nil, &StorageError{Op: "create", Err: err}
	}
	post.Replies = []models.Post{}

	s.invalidate(ctx)

	s.logger.Debug("Post created",
		zap.String("id", post.ID),
		zap.Bool("reply", post.IsReply()),
	)

	return post, nil
}

func validateCreate(in CreateInput) error {
	var fields []FieldError
	switch {
	case strings.TrimSpace(in.PosterName) == "":
		fields = append(fields, FieldError{Field: "posterName", Message: "should not be empty"})
	case utf8.RuneCountInString(in.PosterName) > models.MaxPosterNameLength:
		fields = append(fields, FieldError{
			Field:   "posterName",
			Message: fmt.Sprintf("must be shorter than or equal to %d characters", models.MaxPosterNameLength),
		})
	}
	if strings.TrimSpace(in.Content) == "" {
		fields = append(fields, FieldError{Field: "content", Message: "should not be empty"})
	}
	if in.ReplyToID != nil && strings.TrimSpace(*in.ReplyToID) == "" {
		fields = append(fields, FieldError{Field: "replyToId", Message: "should not be empty"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ListAll returns every post, newest first, with two levels of replies
func (s *Service) ListAll(ctx context.Context) ([]models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.ListAll")
	defer span.End()

	var posts []models.Post
	key := s.cacheKey(ctx, "list")
	if s.fromCache(ctx, key, &posts) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return posts, nil
	}

	posts, err := s.repo.List(ctx)
	if err != nil {
		err = &StorageError{Op: "list", Err: err}
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.toCache(ctx, key, posts)
	span.SetAttributes(attribute.Int("posts.count", len(posts)))
	return posts, nil
}

// GetOne returns a post with its parent and two levels of replies
func (s *Service) GetOne(ctx context.Context, id string) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.GetOne")
	defer span.End()
	span.SetAttributes(attribute.String("post.id", id))

	var cached models.Post
	key := s.cacheKey(ctx, "post:"+cache.HashKey(id))
	if s.fromCache(ctx, key, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	}

	post, err := s.repo.GetThread(ctx, id)
	if err != nil {
		err = &StorageError{Op: "get", Err: err}
		telemetry.RecordError(span, err)
		return nil, err
	}
	if post == nil {
		return nil, &NotFoundError{ID: id}
	}

	s.toCache(ctx, key, post)
	return post, nil
}

// Update replaces the content of a post and returns it with its replies
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.Update")
	defer span.End()
	span.SetAttributes(attribute.String("post.id", id))

	post, err := s.update(ctx, id, in)
	telemetry.RecordError(span, err)
	return post, err
}

func (s *Service) update(ctx context.Context, id string, in UpdateInput) (*models.Post, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, NewValidationError("content", "should not be empty")
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, &StorageError{Op: "update", Err: err}
	}
	if current == nil {
		return nil, &NotFoundError{ID: id}
	}

	updatedAt := s.timestamp()
	if updatedAt.Before(current.UpdatedAt) {
		updatedAt = current.UpdatedAt
	}

	affected, err := s.repo.UpdateContent(ctx, id, in.Content, updatedAt)
	if err != nil {
		return nil, &StorageError{Op: "update", Err: err}
	}
	if affected == 0 {
		return nil, &NotFoundError{ID: id}
	}
	s.invalidate(ctx)

	post, err := s.repo.GetWithReplies(ctx, id)
	if err != nil {
		return nil, &StorageError{Op: "update", Err: err}
	}
	if post == nil {
		return nil, &NotFoundError{ID: id}
	}
	return post, nil
}

// Delete removes a post and returns it. Replies are kept and lose their
// parent reference.
func (s *Service) Delete(ctx context.Context, id string) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("post.id", id))

	post, err := s.delete(ctx, id)
	telemetry.RecordError(span, err)
	return post, err
}

func (s *Service) delete(ctx context.Context, id string) (*models.Post, error) {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, &StorageError{Op: "delete", Err: err}
	}
	if post == nil {
		return nil, &NotFoundError{ID: id}
	}

	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, &StorageError{Op: "delete", Err: err}
	}
	if affected == 0 {
		return nil, &NotFoundError{ID: id}
	}
	s.invalidate(ctx)

	s.logger.Debug("Post deleted", zap.String("id", id))
	return post, nil
}

// ListReplies returns the direct replies of a post, oldest first
func (s *Service) ListReplies(ctx context.Context, id string) ([]models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.ListReplies")
	defer span.End()
	span.SetAttributes(attribute.String("post.id", id))

	exists, err := s.repo.Exists(ctx, id)
	if err != nil {
		err = &StorageError{Op: "list replies", Err: err}
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{ID: id}
	}

	replies, err := s.repo.ListReplies(ctx, id)
	if err != nil {
		err = &StorageError{Op: "list replies", Err: err}
		telemetry.RecordError(span, err)
		return nil, err
	}
	return replies, nil
}

// cacheKey scopes key to the current generation. An empty key disables
// caching for the call.
func (s *Service) cacheKey(ctx context.Context, key string) string {
	if s.cache == nil {
		return ""
	}
	gen, err := s.cache.Generation(ctx, generationKey)
	if err != nil {
		s.logger.Warn("Failed to read cache generation", zap.Error(err))
		return ""
	}
	return fmt.Sprintf("posts:%d:%s", gen, key)
}

func (s *Service) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if key == "" {
		return false
	}
	err := s.cache.GetJSON(ctx, key, dest)
	switch {
	case err == nil:
		return true
	case errors.Is(err, cache.ErrMiss):
	default:
		s.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *Service) toCache(ctx context.Context, key string, value interface{}) {
	if key == "" {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// invalidate moves readers to a fresh generation
func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Bump(ctx, generationKey); err != nil {
		s.logger.Warn("Failed to invalidate post cache", zap.Error(err))
	}
}
