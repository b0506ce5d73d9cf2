package service

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/arxiv-daily/internal/auth"
	"github.com/arxiv-daily/internal/errors"
	"github.com/arxiv-daily/internal/logging"
	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/storage"
	"github.com/arxiv-daily/internal/types"
)

// UserService handles accounts and credentials
type UserService struct {
	userRepo UserRepository
}

// NewUserService creates a new user service
func NewUserService(userRepo UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// CredentialsInput is the form posted by the signup and login pages
type CredentialsInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (in CredentialsInput) normalized() CredentialsInput {
	return CredentialsInput{
		Username: strings.TrimSpace(in.Username),
		Password: strings.TrimSpace(in.Password),
	}
}

// Register creates an account with a hashed password
func (s *UserService) Register(ctx context.Context, input CredentialsInput) (*models.User, error) {
	input = input.normalized()
	if input.Username == "" || input.Password == "" {
		return nil, errors.NewValidationError("username", "Username and password are required.")
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, errors.NewInternalError("failed to hash password", err)
	}

	user := &models.User{
		Username:           input.Username,
		Password:           hash,
		LanguagePreference: types.LanguageEnglish,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if stderrors.Is(err, storage.ErrDuplicate) {
			return nil, errors.NewConflictError("User already exists.", err)
		}
		return nil, errors.NewDatabaseError("register", err)
	}

	logging.FromContext(ctx).WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

// Login verifies credentials. Plaintext passwords left by older databases
// are upgraded to a bcrypt hash on the first successful login.
func (s *UserService) Login(ctx context.Context, input CredentialsInput) (*models.User, error) {
	input = input.normalized()
	invalid := errors.NewUnauthorizedError("Invalid username or password.")
	if input.Username == "" || input.Password == "" {
		return nil, invalid
	}

	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, invalid
		}
		return nil, errors.NewDatabaseError("login", err)
	}

	ok, needsRehash := auth.CheckPassword(user.Password, input.Password)
	if !ok {
		return nil, invalid
	}

	if needsRehash {
		logger := logging.FromContext(ctx).WithField("user_id", user.ID)
		if hash, err := auth.HashPassword(input.Password); err != nil {
			logger.WithError(err).Warn("Failed to hash legacy password")
		} else if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
			logger.WithError(err).Warn("Failed to upgrade legacy password")
		} else {
			user.Password = hash
			logger.Info("Upgraded legacy password")
		}
	}
	return user, nil
}

// EnsureDefaultUser returns the no-auth mode account, creating it on first use
func (s *UserService) EnsureDefaultUser(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		username = "default_user"
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !stderrors.Is(err, storage.ErrNotFound) {
		return nil, errors.NewDatabaseError("load default user", err)
	}

	stored := ""
	if password != "" {
		if stored, err = auth.HashPassword(password); err != nil {
			return nil, errors.NewInternalError("failed to hash password", err)
		}
	}
	user = &models.User{Username: username, Password: stored, LanguagePreference: types.LanguageEnglish}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if stderrors.Is(err, storage.ErrDuplicate) {
			// created by a concurrent request
			user, err = s.userRepo.GetByUsername(ctx, username)
			if err != nil {
				return nil, errors.NewDatabaseError("load default user", err)
			}
			return user, nil
		}
		return nil, errors.NewDatabaseError("create default user", err)
	}

	logging.FromContext(ctx).WithField("username", username).Info("Created default user")
	return user, nil
}

// Get returns a user by id
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NewNotFoundError("User", formatID(id))
		}
		return nil, errors.NewDatabaseError("get user", err)
	}
	return user, nil
}

// SetLanguage stores the interface language
func (s *UserService) SetLanguage(ctx context.Context, id int64, lang string) error {
	language := types.Language(strings.TrimSpace(lang))
	if !language.Valid() {
		return errors.NewValidationError("language", "Unsupported language.")
	}
	if err := s.userRepo.UpdateLanguage(ctx, id, language); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NewNotFoundError("User", formatID(id))
		}
		return errors.NewDatabaseError("set language", err)
	}
	return nil
}

// Delete removes the account and everything that belongs to it
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.userRepo.Delete(ctx, id); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NewNotFoundError("User", formatID(id))
		}
		return errors.NewDatabaseError("delete user", err)
	}
	logging.FromContext(ctx).WithField("user_id", id).Info("User deleted")
	return nil
}
