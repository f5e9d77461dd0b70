// Package seed fills a post store with generated demo threads.
package seed

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"

	"github.com/steemit/postboard/internal/models"
	"github.com/steemit/postboard/internal/posts"
	"github.com/steemit/postboard/pkg/logging"
)

// Creator stores posts
type Creator interface {
	Create(ctx context.Context, in posts.CreateInput) (*models.Post, error)
}

// Options controls the shape of the generated threads
type Options struct {
	Threads    int
	MaxReplies int
	// NestedRatio is the chance in percent that a reply answers an earlier
	// reply instead of the thread root
	NestedRatio int
}

// Stats counts what a run created
type Stats struct {
	Threads int
	Replies int
}

// Seeder generates threads through the post service
type Seeder struct {
	store  Creator
	faker  *gofakeit.Faker
	logger *zap.Logger
}

// New creates a seeder. A zero seed picks a random one.
func New(store Creator, seed int64) *Seeder {
	return &Seeder{
		store:  store,
		faker:  gofakeit.New(seed),
		logger: logging.WithComponent("seed"),
	}
}

// Run creates opts.Threads top-level posts, each with up to opts.MaxReplies
// replies
func (s *Seeder) Run(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats

	for i := 0; i < opts.Threads; i++ {
		root, err := s.store.Create(ctx, s.post(nil))
		if err != nil {
			return stats, fmt.Errorf("failed to create thread %d: %w", i, err)
		}
		stats.Threads++

		thread := []*models.Post{root}
		replies := 0
		if opts.MaxReplies > 0 {
			replies = s.faker.Number(0, opts.MaxReplies)
		}

		for j := 0; j < replies; j++ {
			parent := root
			if len(thread) > 1 && s.faker.Number(1, 100) <= opts.NestedRatio {
				parent = thread[s.faker.Number(1, len(thread)-1)]
			}

			reply, err := s.store.Create(ctx, s.post(&parent.ID))
			if err != nil {
				return stats, fmt.Errorf("failed to create reply to %s: %w", parent.ID, err)
			}
			thread = append(thread, reply)
			stats.Replies++
		}

		s.logger.Debug("Thread seeded", zap.String("id", root.ID), zap.Int("replies", replies))
	}

	return stats, nil
}

func (s *Seeder) post(replyTo *string) posts.CreateInput {
	name := s.faker.Name()
	if len(name) > models.MaxPosterNameLength {
		name = name[:models.MaxPosterNameLength]
	}

	content := s.faker.Paragraph(1, s.faker.Number(1, 4), s.faker.Number(6, 14), " ")
	if replyTo != nil {
		content = s.faker.Sentence(s.faker.Number(4, 16))
	}

	return posts.CreateInput{
		PosterName: name,
		Content:    content,
		ReplyToID:  replyTo,
	}
}
