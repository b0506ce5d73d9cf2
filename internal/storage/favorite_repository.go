package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/similarity"
)

// FavoriteRepository handles favorite folders and their paper memberships
type FavoriteRepository struct {
	db *SQLiteDB
}

// NewFavoriteRepository creates a new favorite repository
func NewFavoriteRepository(db *SQLiteDB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFavorite(row rowScanner) (*models.Favorite, error) {
	var fav models.Favorite
	var embedding sql.NullString
	if err := row.Scan(&fav.ID, &fav.UserID, &fav.Name, &embedding); err != nil {
		return nil, translateError(err)
	}
	if embedding.Valid {
		fav.Embedding = similarity.ParseEmbedding(embedding.String)
	}
	return &fav, nil
}

// Create inserts a folder. The same name twice for one user yields ErrDuplicate.
func (r *FavoriteRepository) Create(ctx context.Context, userID int64, name string) (*models.Favorite, error) {
	res, err := r.db.exec(ctx, `INSERT INTO Favorites (user_id, name) VALUES (?, ?)`, userID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create favorite: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read favorite id: %w", err)
	}
	return &models.Favorite{ID: id, UserID: userID, Name: name}, nil
}

// Ensure returns the user's folder with this name, creating it when missing
func (r *FavoriteRepository) Ensure(ctx context.Context, userID int64, name string) (fav *models.Favorite, created bool, err error) {
	fav, err = r.getByName(ctx, userID, name)
	if err == nil {
		return fav, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	fav, err = r.Create(ctx, userID, name)
	if errors.Is(err, ErrDuplicate) {
		// lost a race with a concurrent insert
		fav, err = r.getByName(ctx, userID, name)
		return fav, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return fav, true, nil
}

func (r *FavoriteRepository) getByName(ctx context.Context, userID int64, name string) (*models.Favorite, error) {
	row := r.db.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, embedding FROM Favorites WHERE user_id = ? AND name = ?`,
		userID, name)
	fav, err := scanFavorite(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get favorite %q: %w", name, err)
	}
	return fav, nil
}

// GetByIDAndUser retrieves a folder only when userID owns it
func (r *FavoriteRepository) GetByIDAndUser(ctx context.Context, id, userID int64) (*models.Favorite, error) {
	row := r.db.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, embedding FROM Favorites WHERE id = ? AND user_id = ?`,
		id, userID)
	fav, err := scanFavorite(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get favorite %d: %w", id, err)
	}
	return fav, nil
}

// ListByUser returns the user's folders ordered by name
func (r *FavoriteRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Favorite, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT id, user_id, name, embedding FROM Favorites WHERE user_id = ? ORDER BY name`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	favorites := []*models.Favorite{}
	for rows.Next() {
		fav, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorites = append(favorites, fav)
	}
	return favorites, rows.Err()
}

// Rename changes a folder's name. A name already used by the owner yields ErrDuplicate.
func (r *FavoriteRepository) Rename(ctx context.Context, id, userID int64, name string) error {
	res, err := r.db.exec(ctx, `UPDATE Favorites SET name = ? WHERE id = ? AND user_id = ?`, name, id, userID)
	if err != nil {
		return fmt.Errorf("failed to rename favorite: %w", err)
	}
	return affectedOrNotFound(res)
}

// DeleteByIDAndUser removes a folder and, by cascade, its memberships
func (r *FavoriteRepository) DeleteByIDAndUser(ctx context.Context, id, userID int64) error {
	res, err := r.db.exec(ctx, `DELETE FROM Favorites WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	return affectedOrNotFound(res)
}

// AddPaper adds a membership. It reports false when the paper was already there.
func (r *FavoriteRepository) AddPaper(ctx context.Context, favoriteID int64, paperID string) (bool, error) {
	res, err := r.db.exec(ctx,
		`INSERT OR IGNORE INTO FavoritePapers (favorite_id, paper_id) VALUES (?, ?)`,
		favoriteID, paperID)
	if err != nil {
		return false, fmt.Errorf("failed to add paper to favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RemovePaper deletes a membership and reports whether one existed
func (r *FavoriteRepository) RemovePaper(ctx context.Context, favoriteID int64, paperID string) (bool, error) {
	res, err := r.db.exec(ctx,
		`DELETE FROM FavoritePapers WHERE favorite_id = ? AND paper_id = ?`,
		favoriteID, paperID)
	if err != nil {
		return false, fmt.Errorf("failed to remove paper from favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PaperIDs returns the folder's paper ids in insertion order
func (r *FavoriteRepository) PaperIDs(ctx context.Context, favoriteID int64) ([]string, error) {
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT paper_id FROM FavoritePapers WHERE favorite_id = ? ORDER BY rowid`,
		favoriteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorite papers: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FavoriteIDsContaining returns which of favoriteIDs hold paperID
func (r *FavoriteRepository) FavoriteIDsContaining(ctx context.Context, paperID string, favoriteIDs []int64) (map[int64]bool, error) {
	found := make(map[int64]bool)
	if paperID == "" || len(favoriteIDs) == 0 {
		return found, nil
	}

	args := make([]interface{}, 0, len(favoriteIDs)+1)
	args = append(args, paperID)
	for _, id := range favoriteIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`SELECT favorite_id FROM FavoritePapers WHERE paper_id = ? AND favorite_id IN (%s)`,
		placeholders(len(favoriteIDs)))
	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	return found, rows.Err()
}

// PaperIDsForUser returns every paper id the user has saved in any folder
func (r *FavoriteRepository) PaperIDsForUser(ctx context.Context, userID int64) (map[string]bool, error) {
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT FavoritePapers.paper_id
		FROM FavoritePapers
		JOIN Favorites ON Favorites.id = FavoritePapers.favorite_id
		WHERE Favorites.user_id = ?
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved papers: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// SetEmbedding stores a folder vector. A nil vector clears the column.
func (r *FavoriteRepository) SetEmbedding(ctx context.Context, favoriteID int64, vec []float64) error {
	var value interface{}
	if vec != nil {
		encoded, err := similarity.Encode(vec)
		if err != nil {
			return fmt.Errorf("failed to encode embedding: %w", err)
		}
		value = encoded
	}

	if _, err := r.db.exec(ctx, `UPDATE Favorites SET embedding = ? WHERE id = ?`, value, favoriteID); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// Embeddings returns the parsed vectors of the user's folders. With no ids
// every folder is considered. Folders without a usable vector are skipped.
func (r *FavoriteRepository) Embeddings(ctx context.Context, userID int64, favoriteIDs ...int64) ([][]float64, error) {
	query := `SELECT embedding FROM Favorites WHERE user_id = ? AND embedding IS NOT NULL`
	args := []interface{}{userID}
	if len(favoriteIDs) > 0 {
		query += fmt.Sprintf(` AND id IN (%s)`, placeholders(len(favoriteIDs)))
		for _, id := range favoriteIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id`

	rows, err := r.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var vectors [][]float64
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		if vec := similarity.ParseEmbedding(raw); vec != nil {
			vectors = append(vectors, vec)
		}
	}
	return vectors, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
