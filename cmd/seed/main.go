package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/steemit/postboard/internal/db"
	"github.com/steemit/postboard/internal/posts"
	"github.com/steemit/postboard/internal/seed"
	"github.com/steemit/postboard/pkg/config"
	"github.com/steemit/postboard/pkg/logging"
)

func main() {
	threads := flag.IntP("threads", "n", 10, "number of top-level posts to create")
	maxReplies := flag.IntP("max-replies", "r", 5, "maximum replies per thread")
	nested := flag.Int("nested", 30, "percent of replies that answer another reply")
	seedValue := flag.Int64("seed", 0, "random seed, 0 picks one")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	svc := posts.NewService(db.NewPostRepository(db.NewRepository(database.DB)))

	stats, err := seed.New(svc, *seedValue).Run(ctx, seed.Options{
		Threads:     *threads,
		MaxReplies:  *maxReplies,
		NestedRatio: *nested,
	})
	if err != nil {
		logger.Fatal("Seeding failed", zap.Error(err), zap.Int("threads", stats.Threads), zap.Int("replies", stats.Replies))
	}

	logger.Info("Seeding completed", zap.Int("threads", stats.Threads), zap.Int("replies", stats.Replies))
}
