// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/steemit/postboard/internal/db"
	"github.com/steemit/postboard/pkg/config"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// NewTestDB opens a migrated in-memory SQLite database private to the test
// and closes it when the test ends.
func NewTestDB(t testing.TB) *db.DB {
	t.Helper()

	name := unsafeChars.ReplaceAllString(t.Name(), "_")
	cfg := &config.DatabaseConfig{
		URL: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}

	database, err := db.New(cfg, "ERROR")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := database.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return database
}
