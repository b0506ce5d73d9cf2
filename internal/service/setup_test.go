package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arxiv-daily/internal/config"
	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/papers"
	"github.com/arxiv-daily/internal/storage"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db        *storage.SQLiteDB
	store     *papers.Store
	users     *UserService
	favorites *FavoriteService
	history   *HistoryService
	filters   *FilterService
	feed      *FeedService

	userRepo     *storage.UserRepository
	favoriteRepo *storage.FavoriteRepository
	historyRepo  *storage.HistoryRepository
	filterRepo   *storage.FilterRepository
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()

	dbPath := filepath.Join(root, "instance", "app.db")
	require.NoError(t, storage.RunMigrations(dbPath))
	db, err := storage.NewSQLiteDB(&config.DatabaseConfig{Path: dbPath, BusyTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := papers.NewStore(&config.PapersConfig{DataDir: filepath.Join(root, "data"), CacheSize: 8}, nil)
	require.NoError(t, err)

	env := &testEnv{
		db:           db,
		store:        store,
		userRepo:     storage.NewUserRepository(db),
		favoriteRepo: storage.NewFavoriteRepository(db),
		historyRepo:  storage.NewHistoryRepository(db),
		filterRepo:   storage.NewFilterRepository(db),
	}
	env.users = NewUserService(env.userRepo)
	env.filters = NewFilterService(env.filterRepo)
	env.history = NewHistoryService(env.historyRepo, env.filters)
	env.favorites = NewFavoriteService(env.favoriteRepo, store, env.filters)
	env.feed = NewFeedService(store, env.favoriteRepo, env.history, env.filters)
	return env
}

func (e *testEnv) writeDay(t *testing.T, date, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.store.Dir(), date+".json"), []byte(body), 0o644))
}

func (e *testEnv) createUser(t *testing.T, username string) *models.User {
	t.Helper()
	user, err := e.users.Register(testContext(t), CredentialsInput{Username: username, Password: "secret"})
	require.NoError(t, err)
	return user
}

func fixedNow(t *testing.T, date string) {
	t.Helper()
	ts, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	prev := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = prev })
}
