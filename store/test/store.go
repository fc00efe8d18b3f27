package test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/vocadrill/vocadrill/internal/profile"
	"github.com/vocadrill/vocadrill/internal/version"
	"github.com/vocadrill/vocadrill/store"
	"github.com/vocadrill/vocadrill/store/db"
)

// NewTestingStore spins up a migrated store backed by a throwaway database.
// SQLite lives in t.TempDir(); PostgreSQL is used when DRIVER=postgres and
// POSTGRES_TEST_DSN point at a scratch database.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	testProfile := getTestingProfile(t)
	dbDriver, err := db.NewDBDriver(testProfile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	ts := store.New(dbDriver, testProfile)
	if err := ts.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}

	t.Cleanup(func() {
		ts.Close()
	})
	return ts
}

func getTestingProfile(t *testing.T) *profile.Profile {
	dir := t.TempDir()
	mode := "prod"
	driver := getDriverFromEnv()

	dsn := filepath.Join(dir, fmt.Sprintf("vocadrill_%s.db", mode))
	if driver == "postgres" {
		dsn = os.Getenv("POSTGRES_TEST_DSN")
		if dsn == "" {
			t.Skip("POSTGRES_TEST_DSN is not set")
		}
	}

	return &profile.Profile{
		Mode:    mode,
		Driver:  driver,
		Data:    dir,
		DSN:     dsn,
		Version: version.GetCurrentVersion(mode),
	}
}

func getDriverFromEnv() string {
	driver := os.Getenv("DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}
