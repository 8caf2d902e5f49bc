package database

import (
	"path/filepath"
	"testing"
)

// setupTestDB opens a throwaway SQLite database under the test's temp dir.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "cardvault_test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
