package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/arxiv-daily/internal/errors"
	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/storage"
	"github.com/arxiv-daily/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock repository for testing

type mockUserRepo struct {
	users          map[string]*models.User
	nextID         int64
	passwordWrites int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*models.User{}}
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if _, ok := m.users[user.Username]; ok {
		return storage.ErrDuplicate
	}
	m.nextID++
	user.ID = m.nextID
	copied := *user
	m.users[user.Username] = &copied
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := m.users[username]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, storage.ErrNotFound
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id int64, password string) error {
	for _, u := range m.users {
		if u.ID == id {
			u.Password = password
			m.passwordWrites++
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *mockUserRepo) UpdateLanguage(ctx context.Context, id int64, lang types.Language) error {
	for _, u := range m.users {
		if u.ID == id {
			u.LanguagePreference = lang
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *mockUserRepo) Delete(ctx context.Context, id int64) error {
	for name, u := range m.users {
		if u.ID == id {
			delete(m.users, name)
			return nil
		}
	}
	return storage.ErrNotFound
}

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newMockUserRepo())

	tests := []struct {
		name      string
		input     CredentialsInput
		wantCode  int
		wantError string
	}{
		{name: "missing username", input: CredentialsInput{Password: "pw"}, wantCode: http.StatusBadRequest, wantError: "Username and password are required."},
		{name: "blank password", input: CredentialsInput{Username: "alice", Password: "   "}, wantCode: http.StatusBadRequest, wantError: "Username and password are required."},
		{name: "ok", input: CredentialsInput{Username: " alice ", Password: "pw"}},
		{name: "duplicate", input: CredentialsInput{Username: "alice", Password: "other"}, wantCode: http.StatusConflict, wantError: "User already exists."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Register(ctx, tt.input)
			if tt.wantError != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errors.GetHTTPStatusCode(err))
				assert.Equal(t, tt.wantError, errors.UserMessage(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "alice", user.Username)
			assert.NotEqual(t, "pw", user.Password, "password must be stored hashed")
			assert.Equal(t, types.LanguageEnglish, user.LanguagePreference)
		})
	}
}

func TestUserService_Login(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newMockUserRepo())

	_, err := svc.Register(ctx, CredentialsInput{Username: "bob", Password: "hunter2"})
	require.NoError(t, err)

	user, err := svc.Login(ctx, CredentialsInput{Username: "bob", Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)

	for _, input := range []CredentialsInput{
		{Username: "bob", Password: "wrong"},
		{Username: "nobody", Password: "hunter2"},
		{Username: "", Password: ""},
	} {
		_, err := svc.Login(ctx, input)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, errors.GetHTTPStatusCode(err))
		assert.Equal(t, "Invalid username or password.", errors.UserMessage(err))
	}
}

func TestUserService_LoginUpgradesPlaintextPassword(t *testing.T) {
	ctx := context.Background()
	repo := newMockUserRepo()
	require.NoError(t, repo.Create(ctx, &models.User{Username: "legacy", Password: "plain"}))
	svc := NewUserService(repo)

	user, err := svc.Login(ctx, CredentialsInput{Username: "legacy", Password: "plain"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.passwordWrites)
	assert.NotEqual(t, "plain", repo.users["legacy"].Password)
	assert.Equal(t, repo.users["legacy"].Password, user.Password)

	_, err = svc.Login(ctx, CredentialsInput{Username: "legacy", Password: "plain"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.passwordWrites, "hashed password is not rewritten")
}

func TestUserService_EnsureDefaultUser(t *testing.T) {
	ctx := context.Background()
	repo := newMockUserRepo()
	svc := NewUserService(repo)

	first, err := svc.EnsureDefaultUser(ctx, "guest", "guest")
	require.NoError(t, err)
	second, err := svc.EnsureDefaultUser(ctx, "guest", "guest")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.users, 1)

	named, err := svc.EnsureDefaultUser(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, "default_user", named.Username)
}

func TestUserService_LanguageAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := testContext(t)
	user := env.createUser(t, "carol")

	require.NoError(t, env.users.SetLanguage(ctx, user.ID, "zh"))
	got, err := env.users.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, types.LanguageChinese, got.LanguagePreference)

	err = env.users.SetLanguage(ctx, user.ID, "fr")
	assert.Equal(t, http.StatusBadRequest, errors.GetHTTPStatusCode(err))

	require.NoError(t, env.users.Delete(ctx, user.ID))
	_, err = env.users.Get(ctx, user.ID)
	assert.Equal(t, http.StatusNotFound, errors.GetHTTPStatusCode(err))
}
