package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// NewTestDB returns an in-memory database with the schema applied, closed
// when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	return openTest(t, ":memory:")
}

// NewTestFileDB is NewTestDB backed by a file in the test's temp dir, for
// tests that reopen the database. The path is returned alongside.
func NewTestFileDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tubetes.sqlite3")
	return openTest(t, path), path
}

func openTest(t *testing.T, path string) *sql.DB {
	t.Helper()

	database, err := Open(path)
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := EnsureSchema(database); err != nil {
		t.Fatalf("applying schema to %s: %v", path, err)
	}
	return database
}
