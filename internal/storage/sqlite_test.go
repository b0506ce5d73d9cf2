package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations_CreatesSchema(t *testing.T) {
	db := newTestDB(t)

	tables, err := db.ListTables(testContext(t))
	require.NoError(t, err)
	assert.Subset(t, tables, []string{"BrowsingHistory", "FavoritePapers", "Favorites", "UserFilters", "Users"})

	version, dirty, err := MigrationVersion(db.Path())
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, RunMigrations(db.Path()))
	require.NoError(t, db.Ping(testContext(t)))
}

func TestRollbackMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RollbackMigrations(path))

	version, _, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}

func TestForeignKeysEnforced(t *testing.T) {
	db := newTestDB(t)
	repo := NewFavoriteRepository(db)

	_, err := repo.Create(testContext(t), 999, "orphan")
	assert.ErrorIs(t, err, ErrForeignKey)

	_, err = repo.AddPaper(testContext(t), 12345, "2401.00001")
	assert.ErrorIs(t, err, ErrForeignKey)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}
