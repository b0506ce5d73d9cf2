package service

import (
	"context"

	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/types"
)

// Repository interfaces for dependency injection

// UserRepository interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdatePassword(ctx context.Context, id int64, password string) error
	UpdateLanguage(ctx context.Context, id int64, lang types.Language) error
	Delete(ctx context.Context, id int64) error
}

// FavoriteRepository interface for favorite folder operations
type FavoriteRepository interface {
	Create(ctx context.Context, userID int64, name string) (*models.Favorite, error)
	Ensure(ctx context.Context, userID int64, name string) (*models.Favorite, bool, error)
	GetByIDAndUser(ctx context.Context, id, userID int64) (*models.Favorite, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Favorite, error)
	Rename(ctx context.Context, id, userID int64, name string) error
	DeleteByIDAndUser(ctx context.Context, id, userID int64) error
	AddPaper(ctx context.Context, favoriteID int64, paperID string) (bool, error)
	RemovePaper(ctx context.Context, favoriteID int64, paperID string) (bool, error)
	PaperIDs(ctx context.Context, favoriteID int64) ([]string, error)
	FavoriteIDsContaining(ctx context.Context, paperID string, favoriteIDs []int64) (map[int64]bool, error)
	PaperIDsForUser(ctx context.Context, userID int64) (map[string]bool, error)
	SetEmbedding(ctx context.Context, favoriteID int64, vec []float64) error
	Embeddings(ctx context.Context, userID int64, favoriteIDs ...int64) ([][]float64, error)
}

// HistoryRepository interface for browsing history operations
type HistoryRepository interface {
	Upsert(ctx context.Context, entry *models.HistoryEntry) error
	Get(ctx context.Context, userID int64, date string) (*models.HistoryEntry, error)
	Latest(ctx context.Context, userID int64) (*models.HistoryEntry, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.HistoryEntry, error)
}

// FilterRepository interface for saved feed selections
type FilterRepository interface {
	Get(ctx context.Context, userID int64) (*models.UserFilter, error)
	Update(ctx context.Context, userID int64, apply func(f *models.UserFilter)) (*models.UserFilter, error)
	UpdateCursor(ctx context.Context, userID int64, date, paperID string, position int) error
}

// PaperSource interface for the per-day paper files
type PaperSource interface {
	ListDates() ([]string, error)
	LatestDate() (string, bool)
	LoadDate(ctx context.Context, date string) []models.Paper
	FindByID(ctx context.Context, id string) (*models.Paper, string, bool)
	TagPool(ctx context.Context) []string
	Card(p models.Paper, date string) *models.PaperCard
	Cards(papers []models.Paper, date string) []*models.PaperCard
}
