package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/arxiv-daily/internal/config"
	"github.com/arxiv-daily/internal/models"
	"github.com/stretchr/testify/require"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// newTestDB creates a migrated database in a temporary directory
func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "instance", "app.db")
	require.NoError(t, RunMigrations(path))

	db, err := NewSQLiteDB(&config.DatabaseConfig{Path: path, BusyTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// createTestUser inserts a user with a placeholder password hash
func createTestUser(t *testing.T, db *SQLiteDB, username string) *models.User {
	t.Helper()

	user := &models.User{Username: username, Password: "hash"}
	require.NoError(t, NewUserRepository(db).Create(testContext(t), user))
	return user
}
