// Package databasetest opens throwaway portal databases for tests.
package databasetest

import (
	"path/filepath"
	"testing"

	"github.com/vilonda/portal/internal/database"
	"gorm.io/gorm"
)

// Open returns a migrated sqlite database living in the test's temp dir.
// A single connection is used so concurrent goroutines queue instead of failing
// with SQLITE_BUSY.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "portal.db") + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := database.Open(database.Options{Driver: "sqlite", DSN: dsn, MaxOpenConns: 1}, nil)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(db); err != nil {
			t.Errorf("close test database: %v", err)
		}
	})
	return db
}
