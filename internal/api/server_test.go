package api

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	app := newTestApp(t, nil)
	app.writeDay(t, "2024-01-02", testDay)

	health := func() (*httptest.ResponseRecorder, map[string]interface{}) {
		rec := httptest.NewRecorder()
		app.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rec, decodeJSON(t, rec.Body.String())
	}

	rec, body := health()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "ok", body["status"])
	searchStatus := body["search"].(map[string]interface{})
	assert.Equal(t, false, searchStatus["running"])
	assert.Equal(t, 0.0, searchStatus["rebuilds"])

	require.NoError(t, app.reindex.RunOnce(testContext(t)))
	_, body = health()
	assert.Equal(t, "ok", body["status"])
	searchStatus = body["search"].(map[string]interface{})
	assert.Equal(t, 2.0, searchStatus["documents"])
	assert.Equal(t, 1.0, searchStatus["rebuilds"])
	assert.NotContains(t, searchStatus, "last_error")

	// a data directory that cannot be listed fails the rebuild
	require.NoError(t, os.RemoveAll(app.store.Dir()))
	require.NoError(t, os.WriteFile(app.store.Dir(), []byte("not a directory"), 0o644))
	require.Error(t, app.reindex.RunOnce(testContext(t)))
	rec, body = health()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", body["status"])
	searchStatus = body["search"].(map[string]interface{})
	assert.NotEmpty(t, searchStatus["last_error"])
	assert.Equal(t, 2.0, searchStatus["documents"], "the last good count is kept")
}

func TestRequireUser(t *testing.T) {
	app := newTestApp(t, nil)

	resp, _ := app.get(t, "/favorites")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/login?next=%2Ffavorites", resp.Header.Get("Location"))

	req := httptest.NewRequest(http.MethodPost, "/history", strings.NewReader(`{"paper_id":"2401.00001"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignupLoginLogout(t *testing.T) {
	app := newTestApp(t, nil)
	app.writeDay(t, "2024-01-02", testDay)

	app.signup(t, "alice")

	resp, body := app.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Signup successful.")
	assert.Contains(t, body, "Papers for 2024-01-02")
	assert.Contains(t, body, "Vision transformers")

	// the flash is shown once
	_, body = app.get(t, "/")
	assert.NotContains(t, body, "Signup successful.")

	resp, _ = app.postForm(t, "/auth/signup", url.Values{"username": {"alice"}, "password": {"other"}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = app.get(t, "/auth/logout")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/login", resp.Header.Get("Location"))

	resp, _ = app.get(t, "/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	resp, body = app.postForm(t, "/auth/login", url.Values{"username": {"alice"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Invalid username or password.")

	resp, _ = app.postForm(t, "/auth/login", url.Values{
		"username": {"alice"},
		"password": {"secret"},
		"next":     {"/settings"},
	})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/settings", resp.Header.Get("Location"))

	resp, body = app.get(t, "/settings")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Welcome back!")
}

func TestLogin_RejectsOffsiteNext(t *testing.T) {
	app := newTestApp(t, nil)
	app.signup(t, "alice")

	resp, _ := app.postForm(t, "/auth/login", url.Values{
		"username": {"alice"},
		"password": {"secret"},
		"next":     {"//evil.example.com/"},
	})
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestNoAuthMode(t *testing.T) {
	app := newTestApp(t, func(cfg *ServerConfig) { cfg.NoAuthMode = true })
	app.writeDay(t, "2024-01-02", testDay)

	resp, body := app.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "default_user")
	assert.NotContains(t, body, "Log out")

	resp, _ = app.get(t, "/auth/login")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = app.get(t, "/auth/logout")
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestAuthRateLimit(t *testing.T) {
	app := newTestApp(t, func(cfg *ServerConfig) {
		cfg.AuthRPS = 1
		cfg.AuthBurst = 1
	})

	post := func() *httptest.ResponseRecorder {
		form := url.Values{"username": {"alice"}, "password": {"wrong"}}
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		app.server.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, post().Code)
	limited := post()
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Contains(t, limited.Body.String(), "Too many attempts.")

	// page views are not limited
	rec := httptest.NewRecorder()
	app.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSaveHistory(t *testing.T) {
	app := newTestApp(t, nil)
	app.writeDay(t, "2024-01-02", testDay)
	app.signup(t, "alice")

	postJSON := func(body string) (*http.Response, string) {
		req, err := http.NewRequest(http.MethodPost, app.ts.URL+"/history", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		return app.do(t, req)
	}

	resp, body := postJSON(`{"position": 10}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ignored"}`, body)

	resp, body = postJSON(`not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ignored"}`, body)

	resp, body = postJSON(`{"paper_id": "2401.00002", "date": "2024-01-02", "position": "120"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	filters, err := app.filters.Load(testContext(t), app.userID(t, "alice"))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", filters.LastDate)
	assert.Equal(t, "2401.00002", filters.LastPaperID)
	assert.Equal(t, 120, filters.LastPosition)

	resp, _ = postJSON(`{"paper_id": "2401.00002", "date": "01/02/2024"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = app.get(t, "/")
	assert.Contains(t, body, `"paper_id":"2401.00002"`)
}

func TestSearch(t *testing.T) {
	app := newTestApp(t, nil)
	app.writeDay(t, "2024-01-02", testDay)
	app.writeDay(t, "2024-01-01", `[{"id": "2312.99999", "title_en": "Vision before the holidays", "category": "cs.CV"}]`)
	require.NoError(t, app.reindex.RunOnce(testContext(t)))
	app.signup(t, "alice")

	t.Run("empty query", func(t *testing.T) {
		resp, body := app.get(t, "/search?q=+")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotContains(t, body, "result(s)")
		assert.NotContains(t, body, "search-hit")
	})

	t.Run("hit with highlights", func(t *testing.T) {
		resp, body := app.get(t, "/search?q=transformers")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "1 result(s)")
		assert.Contains(t, body, `href="/paper/2401.00001"`)
		assert.Contains(t, body, "relevance ")
		assert.Contains(t, body, "<mark>transformers</mark>")
		assert.NotContains(t, body, "Language models")
	})

	t.Run("hits without a day file are skipped", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(app.store.Dir(), "2024-01-01.json")))

		resp, body := app.get(t, "/search?q=vision")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "1 result(s)")
		assert.Contains(t, body, "Vision transformers")
		assert.NotContains(t, body, "2312.99999")
	})
}

func TestIndex_InvalidDateWarning(t *testing.T) {
	app := newTestApp(t, nil)
	app.writeDay(t, "2024-01-02", testDay)
	app.signup(t, "alice")

	resp, body := app.get(t, "/?date=yesterday")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Invalid date format, using latest available.")
	assert.Contains(t, body, "Papers for 2024-01-02")
}

func TestIndex_CategoryFilter(t *testing.T) {
	app := newTestApp(t, nil)
	app.writeDay(t, "2024-01-02", testDay)
	app.signup(t, "alice")

	_, body := app.get(t, "/?category=cs.CL")
	assert.Contains(t, body, "Language models")
	assert.NotContains(t, body, "Vision transformers")

	// the selection is remembered
	_, body = app.get(t, "/")
	assert.NotContains(t, body, "Vision transformers")
}

func TestDataImage(t *testing.T) {
	app := newTestApp(t, nil)
	app.signup(t, "alice")

	images := app.store.Dir() + "/images"
	require.NoError(t, mkdirWrite(images, "fig.png", "png-bytes"))

	resp, body := app.get(t, "/data/images/fig.png")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png-bytes", body)

	resp, _ = app.get(t, "/data/images/missing.png")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = app.get(t, "/data/images/%2e%2e/%2e%2e/instance/app.db")
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestCompression(t *testing.T) {
	app := newTestApp(t, func(cfg *ServerConfig) { cfg.NoAuthMode = true })
	app.writeDay(t, "2024-01-02", testDay)
	require.NoError(t, mkdirWrite(app.store.Dir()+"/images", "fig.png", "png-bytes"))

	serve := func(path string, header http.Header) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for k, v := range header {
			req.Header[k] = v
		}
		rec := httptest.NewRecorder()
		app.server.Handler().ServeHTTP(rec, req)
		return rec
	}

	t.Run("pages are gzipped", func(t *testing.T) {
		rec := serve("/", http.Header{"Accept-Encoding": {"gzip"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
		zr, err := gzip.NewReader(rec.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.Contains(t, string(body), "Vision transformers")
	})

	t.Run("range request on an image", func(t *testing.T) {
		rec := serve("/data/images/fig.png", http.Header{
			"Accept-Encoding": {"gzip"},
			"Range":           {"bytes=0-3"},
		})
		assert.Equal(t, http.StatusPartialContent, rec.Code)
		assert.Empty(t, rec.Header().Get("Content-Encoding"))
		assert.Equal(t, "bytes 0-3/9", rec.Header().Get("Content-Range"))
		assert.Equal(t, "png-", rec.Body.String())
	})

	t.Run("full image", func(t *testing.T) {
		rec := serve("/data/images/fig.png", http.Header{"Accept-Encoding": {"gzip"}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Content-Encoding"))
		assert.Equal(t, "png-bytes", rec.Body.String())
	})
}

func decodeJSON(t *testing.T, body string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	return out
}
