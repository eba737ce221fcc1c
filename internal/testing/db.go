// Package testing provides testing utilities and helpers for the harvest project.
package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/harvest/internal/database"
)

// NewTestDB creates a temporary SQLite database for testing with the embedded
// schema for name applied ("harvest" or "cache").
// Returns the database instance and a cleanup function. The cleanup function
// is also registered with t.Cleanup, so calling it is optional.
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	profile := database.ProfileStandard
	if name == "cache" {
		profile = database.ProfileCache
	}

	path := filepath.Join(t.TempDir(), "test_"+name+".db")
	db, err := database.New(database.Config{
		Path:    path,
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	closed := false
	cleanup := func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		_ = os.Remove(path)
	}
	t.Cleanup(cleanup)

	return db, cleanup
}
