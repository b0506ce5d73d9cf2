package api

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arxiv-daily/internal/auth"
	"github.com/arxiv-daily/internal/config"
	"github.com/arxiv-daily/internal/papers"
	"github.com/arxiv-daily/internal/search"
	"github.com/arxiv-daily/internal/service"
	"github.com/arxiv-daily/internal/storage"
	"github.com/arxiv-daily/internal/worker"
	"github.com/stretchr/testify/require"
)

const testDay = `[
  {"id": "2401.00001", "title_en": "Vision transformers", "category": "cs.CV", "tags": ["vision"], "pub_date": "2024-01-02", "embedding": [1, 0]},
  {"id": "2401.00002", "title_en": "Language models", "category": "cs.CL", "tags": ["nlp"], "pub_date": "2024-01-02", "embedding": [0, 1]}
]`

// testApp is a server backed by a temporary database and data directory
type testApp struct {
	server  *Server
	ts      *httptest.Server
	client  *http.Client
	store   *papers.Store
	index   *search.Index
	reindex *worker.ReindexWorker

	users     *service.UserService
	favorites *service.FavoriteService
	filters   *service.FilterService
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestApp(t *testing.T, configure func(*ServerConfig)) *testApp {
	t.Helper()
	root := t.TempDir()

	dbPath := filepath.Join(root, "instance", "app.db")
	require.NoError(t, storage.RunMigrations(dbPath))
	db, err := storage.NewSQLiteDB(&config.DatabaseConfig{Path: dbPath, BusyTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := papers.NewStore(&config.PapersConfig{DataDir: filepath.Join(root, "data"), CacheSize: 8}, nil)
	require.NoError(t, err)

	index, err := search.NewIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	reindex, err := worker.NewReindexWorker(&worker.ReindexWorkerConfig{Index: index, Source: store})
	require.NoError(t, err)

	favoriteRepo := storage.NewFavoriteRepository(db)
	users := service.NewUserService(storage.NewUserRepository(db))
	filters := service.NewFilterService(storage.NewFilterRepository(db))
	history := service.NewHistoryService(storage.NewHistoryRepository(db), filters)
	favorites := service.NewFavoriteService(favoriteRepo, store, filters)
	feed := service.NewFeedService(store, favoriteRepo, history, filters)

	cfg := &ServerConfig{
		Host:            "127.0.0.1",
		Port:            "0",
		DefaultUsername: "default_user",
	}
	if configure != nil {
		configure(cfg)
	}

	server, err := NewServer(cfg, &Services{
		Users:     users,
		Favorites: favorites,
		Filters:   filters,
		History:   history,
		Feed:      feed,
		Papers:    store,
		Search:    index,
		Reindex:   reindex,
		Sessions:  auth.NewSessionManager("test-secret", time.Hour, false),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testApp{
		server: server,
		ts:     ts,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		store:     store,
		index:     index,
		reindex:   reindex,
		users:     users,
		favorites: favorites,
		filters:   filters,
	}
}

func (a *testApp) writeDay(t *testing.T, date, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(a.store.Dir(), date+".json"), []byte(body), 0o644))
}

func (a *testApp) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.ts.URL+path, nil)
	require.NoError(t, err)
	return a.do(t, req)
}

func (a *testApp) postForm(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.ts.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(t, req)
}

func (a *testApp) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

// signup registers a user through the form, leaving the session cookie in the jar
func (a *testApp) signup(t *testing.T, username string) {
	t.Helper()
	resp, _ := a.postForm(t, "/auth/signup", url.Values{"username": {username}, "password": {"secret"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func (a *testApp) userID(t *testing.T, username string) int64 {
	t.Helper()
	user, err := a.users.Login(testContext(t), service.CredentialsInput{Username: username, Password: "secret"})
	require.NoError(t, err)
	return user.ID
}
