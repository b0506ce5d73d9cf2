package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arxiv-daily/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	ok, rehash := CheckPassword(hash, "s3cret")
	assert.True(t, ok)
	assert.False(t, rehash)

	ok, _ = CheckPassword(hash, "wrong")
	assert.False(t, ok)
}

func TestCheckPassword_Plaintext(t *testing.T) {
	ok, rehash := CheckPassword("guest", "guest")
	assert.True(t, ok)
	assert.True(t, rehash)

	ok, rehash = CheckPassword("guest", "nope")
	assert.False(t, ok)
	assert.False(t, rehash)

	ok, _ = CheckPassword("", "")
	assert.False(t, ok)
}

func TestSessionManager_RoundTrip(t *testing.T) {
	m := NewSessionManager("secret", time.Hour, false)

	rec := httptest.NewRecorder()
	require.NoError(t, m.SignIn(rec, 42, "alice"))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	claims, err := m.FromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.NotEmpty(t, claims.ID)
}

func TestSessionManager_Rejects(t *testing.T) {
	m := NewSessionManager("secret", time.Hour, false)
	other := NewSessionManager("other", time.Hour, false)

	token, err := other.Issue(1, "mallory")
	require.NoError(t, err)
	_, err = m.Parse(token)
	assert.Error(t, err, "wrong key")

	expired := NewSessionManager("secret", time.Nanosecond, false)
	token, err = expired.Issue(1, "alice")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = m.Parse(token)
	assert.Error(t, err, "expired")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = m.FromRequest(req)
	assert.ErrorIs(t, err, ErrNoSession)

	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "garbage"})
	_, err = m.FromRequest(req)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSignOut(t *testing.T) {
	m := NewSessionManager("secret", time.Hour, false)
	rec := httptest.NewRecorder()
	m.SignOut(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestUserContext(t *testing.T) {
	assert.Nil(t, UserFromContext(context.Background()))
	user := &models.User{ID: 1, Username: "alice"}
	assert.Same(t, user, UserFromContext(WithUser(context.Background(), user)))
}
