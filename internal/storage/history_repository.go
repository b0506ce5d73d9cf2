package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arxiv-daily/internal/models"
)

// HistoryRepository stores the last-viewed position per user and day
type HistoryRepository struct {
	db *SQLiteDB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *SQLiteDB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Upsert writes the entry, overwriting any row for the same user and date
func (r *HistoryRepository) Upsert(ctx context.Context, entry *models.HistoryEntry) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO BrowsingHistory (user_id, paper_id, date, position)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			paper_id = excluded.paper_id,
			position = excluded.position
	`, entry.UserID, entry.PaperID, entry.Date, entry.Position)
	if err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}

func scanHistory(row rowScanner) (*models.HistoryEntry, error) {
	var entry models.HistoryEntry
	var paperID sql.NullString
	var position sql.NullInt64
	if err := row.Scan(&entry.UserID, &paperID, &entry.Date, &position); err != nil {
		return nil, translateError(err)
	}
	entry.PaperID = paperID.String
	entry.Position = int(position.Int64)
	return &entry, nil
}

// Get returns the entry for one day
func (r *HistoryRepository) Get(ctx context.Context, userID int64, date string) (*models.HistoryEntry, error) {
	row := r.db.db.QueryRowContext(ctx,
		`SELECT user_id, paper_id, date, position FROM BrowsingHistory WHERE user_id = ? AND date = ?`,
		userID, date)
	entry, err := scanHistory(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", date, err)
	}
	return entry, nil
}

// Latest returns the entry with the greatest date
func (r *HistoryRepository) Latest(ctx context.Context, userID int64) (*models.HistoryEntry, error) {
	row := r.db.db.QueryRowContext(ctx, `
		SELECT user_id, paper_id, date, position
		FROM BrowsingHistory
		WHERE user_id = ?
		ORDER BY date DESC
		LIMIT 1
	`, userID)
	entry, err := scanHistory(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest history: %w", err)
	}
	return entry, nil
}

// ListByUser returns up to limit entries, newest date first
func (r *HistoryRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.db.QueryContext(ctx, `
		SELECT user_id, paper_id, date, position
		FROM BrowsingHistory
		WHERE user_id = ?
		ORDER BY date DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := []*models.HistoryEntry{}
	for rows.Next() {
		entry, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
