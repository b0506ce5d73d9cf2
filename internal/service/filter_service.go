package service

import (
	"context"

	"github.com/arxiv-daily/internal/errors"
	"github.com/arxiv-daily/internal/models"
)

// FilterService reads and writes the per-user feed selection and resume cursor
type FilterService struct {
	filterRepo FilterRepository
}

// NewFilterService creates a new filter service
func NewFilterService(filterRepo FilterRepository) *FilterService {
	return &FilterService{filterRepo: filterRepo}
}

// FilterUpdate is a partial update. Nil fields keep the stored value;
// an empty non-nil slice clears it.
type FilterUpdate struct {
	Categories   []string
	Tags         *models.TagFilter
	SimFavorites []int64
	LastDate     *string
	LastPaperID  *string
	LastPosition *int
}

// Load returns the user's saved filters, or defaults with HasRecord false
func (s *FilterService) Load(ctx context.Context, userID int64) (*models.UserFilter, error) {
	f, err := s.filterRepo.Get(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("load filters", err)
	}
	if f == nil {
		return models.DefaultUserFilter(userID), nil
	}
	return f, nil
}

// Save merges update into the stored filters. The read and the write share
// one transaction.
func (s *FilterService) Save(ctx context.Context, userID int64, update FilterUpdate) (*models.UserFilter, error) {
	saved, err := s.filterRepo.Update(ctx, userID, update.apply)
	if err != nil {
		return nil, errors.NewDatabaseError("save filters", err)
	}
	return saved, nil
}

// SaveCursor moves the resume cursor, leaving the selection untouched
func (s *FilterService) SaveCursor(ctx context.Context, userID int64, date, paperID string, position int) error {
	if position < 0 {
		position = 0
	}
	if err := s.filterRepo.UpdateCursor(ctx, userID, date, paperID, position); err != nil {
		return errors.NewDatabaseError("save cursor", err)
	}
	return nil
}

// AppendSimFavorite adds a folder to the similarity selection, keeping everything else
func (s *FilterService) AppendSimFavorite(ctx context.Context, userID, favoriteID int64) error {
	_, err := s.filterRepo.Update(ctx, userID, func(next *models.UserFilter) {
		for _, id := range next.SimFavorites {
			if id == favoriteID {
				return
			}
		}
		next.SimFavorites = keepNonNegative(append(append([]int64{}, next.SimFavorites...), favoriteID))
	})
	if err != nil {
		return errors.NewDatabaseError("save filters", err)
	}
	return nil
}

func (u FilterUpdate) apply(next *models.UserFilter) {
	if u.Categories != nil {
		next.Categories = u.Categories
	}
	if u.Tags != nil {
		next.Tags = *u.Tags
	}
	if u.SimFavorites != nil {
		next.SimFavorites = u.SimFavorites
	}
	if u.LastDate != nil {
		next.LastDate = *u.LastDate
	}
	if u.LastPaperID != nil {
		next.LastPaperID = *u.LastPaperID
	}
	if u.LastPosition != nil {
		next.LastPosition = *u.LastPosition
	}

	next.Categories = cleanStrings(next.Categories)
	next.Tags = models.TagFilter{
		Whitelist: cleanStrings(next.Tags.Whitelist),
		Blacklist: cleanStrings(next.Tags.Blacklist),
	}
	next.SimFavorites = keepNonNegative(next.SimFavorites)
}

func keepNonNegative(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if id >= 0 && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
