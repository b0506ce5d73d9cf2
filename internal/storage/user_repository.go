package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/types"
)

// UserRepository handles user data persistence
type UserRepository struct {
	db *SQLiteDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *SQLiteDB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user and sets its ID. A taken username yields ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if !user.LanguagePreference.Valid() {
		user.LanguagePreference = types.LanguageEnglish
	}

	res, err := r.db.exec(ctx,
		`INSERT INTO Users (username, password, language_preference) VALUES (?, ?, ?)`,
		user.Username, user.Password, string(user.LanguagePreference),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id
	return nil
}

const userColumns = `id, username, password, language_preference`

func scanUser(row *sql.Row) (*models.User, error) {
	var user models.User
	var lang sql.NullString
	if err := row.Scan(&user.ID, &user.Username, &user.Password, &lang); err != nil {
		return nil, translateError(err)
	}
	user.LanguagePreference = types.ParseLanguage(lang.String)
	return &user, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM Users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.db.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM Users WHERE username = ?`, username)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", username, err)
	}
	return user, nil
}

// UpdatePassword replaces the stored credential
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, password string) error {
	res, err := r.db.exec(ctx, `UPDATE Users SET password = ? WHERE id = ?`, password, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return affectedOrNotFound(res)
}

// UpdateLanguage stores the user's interface language
func (r *UserRepository) UpdateLanguage(ctx context.Context, id int64, lang types.Language) error {
	res, err := r.db.exec(ctx, `UPDATE Users SET language_preference = ? WHERE id = ?`, string(lang), id)
	if err != nil {
		return fmt.Errorf("failed to update language: %w", err)
	}
	return affectedOrNotFound(res)
}

// Delete removes a user. Favorites, memberships, history and filters
// are removed by the ON DELETE CASCADE foreign keys.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.exec(ctx, `DELETE FROM Users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return affectedOrNotFound(res)
}

// Count returns the number of users
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
