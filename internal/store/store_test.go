package store

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/cadence/internal/database"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *sqlx.DB, username string) int64 {
	t.Helper()
	u, err := NewUserStore(db).Create(t.Context(), username, "hash", "")
	if err != nil {
		t.Fatalf("create user %q: %v", username, err)
	}
	return u.ID
}

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
