package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arxiv-daily/internal/models"
)

// FilterRepository stores one UserFilters row per user
type FilterRepository struct {
	db *SQLiteDB
}

// NewFilterRepository creates a new filter repository
func NewFilterRepository(db *SQLiteDB) *FilterRepository {
	return &FilterRepository{db: db}
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Get returns the user's filter row, or nil when the user has none
func (r *FilterRepository) Get(ctx context.Context, userID int64) (*models.UserFilter, error) {
	return getFilter(ctx, r.db.db, userID)
}

func getFilter(ctx context.Context, q rowQuerier, userID int64) (*models.UserFilter, error) {
	var (
		categories, tags, simFavorites sql.NullString
		lastDate, lastPaperID          sql.NullString
		lastPosition                   sql.NullInt64
		updatedAt                      sql.NullTime
	)

	err := q.QueryRowContext(ctx, `
		SELECT categories, tags, sim_favorites, last_date, last_paper_id, last_position, updated_at
		FROM UserFilters WHERE user_id = ?
	`, userID).Scan(&categories, &tags, &simFavorites, &lastDate, &lastPaperID, &lastPosition, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get filters: %w", err)
	}

	return &models.UserFilter{
		UserID:       userID,
		Categories:   DecodeStringList(categories.String),
		Tags:         DecodeTagFilter(tags.String),
		SimFavorites: DecodeIDList(simFavorites.String),
		LastDate:     lastDate.String,
		LastPaperID:  lastPaperID.String,
		LastPosition: int(lastPosition.Int64),
		UpdatedAt:    updatedAt.Time,
		HasRecord:    true,
	}, nil
}

// Update reads the user's row (or the defaults), lets apply change it and
// writes every column back, all inside one transaction.
func (r *FilterRepository) Update(ctx context.Context, userID int64, apply func(f *models.UserFilter)) (*models.UserFilter, error) {
	var saved *models.UserFilter
	err := r.db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getFilter(ctx, tx, userID)
		if err != nil {
			return err
		}
		if current == nil {
			current = models.DefaultUserFilter(userID)
		}
		current.UserID = userID
		apply(current)

		args, err := filterArgs(current)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, upsertFilterSQL, args...); err != nil {
			return fmt.Errorf("failed to save filters: %w", err)
		}
		current.HasRecord = true
		saved = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// UpdateCursor moves the resume cursor without touching the saved selection
func (r *FilterRepository) UpdateCursor(ctx context.Context, userID int64, date, paperID string, position int) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO UserFilters (user_id, last_date, last_paper_id, last_position)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			last_date = excluded.last_date,
			last_paper_id = excluded.last_paper_id,
			last_position = excluded.last_position,
			updated_at = CURRENT_TIMESTAMP
	`, userID, nullString(date), nullString(paperID), position)
	if err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

const upsertFilterSQL = `
	INSERT INTO UserFilters (user_id, categories, tags, sim_favorites, last_date, last_paper_id, last_position)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		categories = excluded.categories,
		tags = excluded.tags,
		sim_favorites = excluded.sim_favorites,
		last_date = excluded.last_date,
		last_paper_id = excluded.last_paper_id,
		last_position = excluded.last_position,
		updated_at = CURRENT_TIMESTAMP
`

func filterArgs(f *models.UserFilter) ([]interface{}, error) {
	categories, err := json.Marshal(nonNilStrings(f.Categories))
	if err != nil {
		return nil, fmt.Errorf("failed to encode categories: %w", err)
	}
	tags, err := json.Marshal(models.TagFilter{
		Whitelist: nonNilStrings(f.Tags.Whitelist),
		Blacklist: nonNilStrings(f.Tags.Blacklist),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	simFavorites := f.SimFavorites
	if simFavorites == nil {
		simFavorites = []int64{}
	}
	sims, err := json.Marshal(simFavorites)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sim favorites: %w", err)
	}
	return []interface{}{f.UserID, string(categories), string(tags), string(sims),
		nullString(f.LastDate), nullString(f.LastPaperID), f.LastPosition}, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// CleanStrings trims every value, drops empties and stringifies non-strings
func CleanStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		var s string
		switch t := v.(type) {
		case nil:
			continue
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DecodeStringList reads a JSON array column. Malformed text yields an empty list.
func DecodeStringList(raw string) []string {
	var items []interface{}
	if strings.TrimSpace(raw) == "" || json.Unmarshal([]byte(raw), &items) != nil {
		return []string{}
	}
	return CleanStrings(items)
}

// DecodeTagFilter reads the tags column. An object carries whitelist and
// blacklist; a bare array is treated as a whitelist.
func DecodeTagFilter(raw string) models.TagFilter {
	filter := models.TagFilter{Whitelist: []string{}, Blacklist: []string{}}
	if strings.TrimSpace(raw) == "" {
		return filter
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return filter
	}

	switch v := decoded.(type) {
	case map[string]interface{}:
		if wl, ok := v["whitelist"].([]interface{}); ok {
			filter.Whitelist = CleanStrings(wl)
		}
		if bl, ok := v["blacklist"].([]interface{}); ok {
			filter.Blacklist = CleanStrings(bl)
		}
	case []interface{}:
		filter.Whitelist = CleanStrings(v)
	}
	return filter
}

// DecodeIDList reads the sim_favorites column. Whole numbers and digit strings
// are kept; anything else is dropped.
func DecodeIDList(raw string) []int64 {
	ids := []int64{}
	var items []interface{}
	if strings.TrimSpace(raw) == "" || json.Unmarshal([]byte(raw), &items) != nil {
		return ids
	}
	for _, item := range items {
		switch v := item.(type) {
		case float64:
			if v == math.Trunc(v) && v >= 0 {
				ids = append(ids, int64(v))
			}
		case string:
			if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil && id >= 0 {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
