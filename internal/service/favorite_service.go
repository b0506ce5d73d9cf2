package service

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"

	"github.com/arxiv-daily/internal/errors"
	"github.com/arxiv-daily/internal/logging"
	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/papers"
	"github.com/arxiv-daily/internal/similarity"
	"github.com/arxiv-daily/internal/storage"
)

// FavoriteService manages favorite folders and their aggregated embeddings
type FavoriteService struct {
	favoriteRepo FavoriteRepository
	paperSrc     PaperSource
	filters      *FilterService
}

// NewFavoriteService creates a new favorite service
func NewFavoriteService(favoriteRepo FavoriteRepository, papers PaperSource, filters *FilterService) *FavoriteService {
	return &FavoriteService{
		favoriteRepo: favoriteRepo,
		paperSrc:     papers,
		filters:      filters,
	}
}

// AddPaperInput adds one paper to several folders, optionally creating one
type AddPaperInput struct {
	PaperID         string
	FavoriteIDs     []int64
	NewFavoriteName string
}

// List returns the user's folders ordered by name
func (s *FavoriteService) List(ctx context.Context, userID int64) ([]*models.Favorite, error) {
	favorites, err := s.favoriteRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("list favorites", err)
	}
	return favorites, nil
}

// Get returns a folder owned by the user
func (s *FavoriteService) Get(ctx context.Context, userID, favoriteID int64) (*models.Favorite, error) {
	fav, err := s.favoriteRepo.GetByIDAndUser(ctx, favoriteID, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NewNotFoundError("Favorite", formatID(favoriteID))
		}
		return nil, errors.NewDatabaseError("get favorite", err)
	}
	return fav, nil
}

// Create adds a folder and selects it for similarity ranking. A name the
// user already uses is a conflict.
func (s *FavoriteService) Create(ctx context.Context, userID int64, name string) (*models.Favorite, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewValidationError("name", "Please provide a folder name.")
	}
	fav, err := s.favoriteRepo.Create(ctx, userID, name)
	if err != nil {
		if stderrors.Is(err, storage.ErrDuplicate) {
			return nil, errors.NewConflictError("A folder with this name already exists.", err)
		}
		return nil, errors.NewDatabaseError("create favorite", err)
	}
	if err := s.filters.AppendSimFavorite(ctx, userID, fav.ID); err != nil {
		return nil, err
	}
	return fav, nil
}

// Ensure returns the folder with this name, creating it when missing.
// The folder is added to the user's similarity selection either way.
func (s *FavoriteService) Ensure(ctx context.Context, userID int64, name string) (*models.Favorite, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewValidationError("name", "Please provide a folder name.")
	}
	fav, created, err := s.favoriteRepo.Ensure(ctx, userID, name)
	if err != nil {
		return nil, errors.NewDatabaseError("ensure favorite", err)
	}
	if created {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"user_id":     userID,
			"favorite_id": fav.ID,
		}).Info("Favorite created")
	}
	if err := s.filters.AppendSimFavorite(ctx, userID, fav.ID); err != nil {
		return nil, err
	}
	return fav, nil
}

// Rename changes a folder's name
func (s *FavoriteService) Rename(ctx context.Context, userID, favoriteID int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.NewValidationError("name", "Folder name cannot be empty.")
	}
	err := s.favoriteRepo.Rename(ctx, favoriteID, userID, name)
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, storage.ErrDuplicate):
		return errors.NewConflictError("A folder with this name already exists.", err)
	case stderrors.Is(err, storage.ErrNotFound):
		return errors.NewNotFoundError("Favorite", formatID(favoriteID))
	default:
		return errors.NewDatabaseError("rename favorite", err)
	}
}

// Delete removes a folder with its memberships and returns what was removed
func (s *FavoriteService) Delete(ctx context.Context, userID, favoriteID int64) (*models.Favorite, error) {
	fav, err := s.Get(ctx, userID, favoriteID)
	if err != nil {
		return nil, err
	}
	if err := s.favoriteRepo.DeleteByIDAndUser(ctx, favoriteID, userID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NewNotFoundError("Favorite", formatID(favoriteID))
		}
		return nil, errors.NewDatabaseError("delete favorite", err)
	}
	return fav, nil
}

// AddPaper adds a paper to the selected folders and returns how many
// memberships were created. Folders the user does not own are skipped.
func (s *FavoriteService) AddPaper(ctx context.Context, userID int64, input AddPaperInput) (int, error) {
	paperID := strings.TrimSpace(input.PaperID)
	if paperID == "" {
		return 0, errors.NewValidationError("paper_id", "Missing paper id.")
	}

	ids := append([]int64{}, input.FavoriteIDs...)
	if name := strings.TrimSpace(input.NewFavoriteName); name != "" {
		fav, err := s.Ensure(ctx, userID, name)
		if err != nil {
			return 0, err
		}
		ids = append(ids, fav.ID)
	}

	added := 0
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if _, err := s.favoriteRepo.GetByIDAndUser(ctx, id, userID); err != nil {
			if stderrors.Is(err, storage.ErrNotFound) {
				continue
			}
			return added, errors.NewDatabaseError("add paper", err)
		}
		inserted, err := s.favoriteRepo.AddPaper(ctx, id, paperID)
		if err != nil {
			return added, errors.NewDatabaseError("add paper", err)
		}
		if !inserted {
			continue
		}
		if _, err := s.RecomputeEmbedding(ctx, id); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// RemovePaper drops a paper from a folder owned by the user
func (s *FavoriteService) RemovePaper(ctx context.Context, userID, favoriteID int64, paperID string) error {
	if _, err := s.Get(ctx, userID, favoriteID); err != nil {
		return err
	}
	paperID = strings.TrimSpace(paperID)
	if paperID == "" {
		return errors.NewValidationError("paper_id", "Missing paper id.")
	}
	if _, err := s.favoriteRepo.RemovePaper(ctx, favoriteID, paperID); err != nil {
		return errors.NewDatabaseError("remove paper", err)
	}
	_, err := s.RecomputeEmbedding(ctx, favoriteID)
	return err
}

// RecomputeEmbedding stores the mean embedding of the folder's papers.
// Papers that cannot be found or carry no embedding are ignored; with
// none left the column is cleared.
func (s *FavoriteService) RecomputeEmbedding(ctx context.Context, favoriteID int64) ([]float64, error) {
	ids, err := s.favoriteRepo.PaperIDs(ctx, favoriteID)
	if err != nil {
		return nil, errors.NewDatabaseError("recompute embedding", err)
	}

	var vectors [][]float64
	for _, id := range ids {
		paper, _, ok := s.paperSrc.FindByID(ctx, id)
		if !ok || len(paper.Embedding) == 0 {
			continue
		}
		vectors = append(vectors, paper.Embedding)
	}

	mean := similarity.Mean(vectors)
	if err := s.favoriteRepo.SetEmbedding(ctx, favoriteID, mean); err != nil {
		return nil, errors.NewDatabaseError("store embedding", err)
	}
	return mean, nil
}

// WithSimilarity lists the user's folders relative to one paper: whether
// each holds it and how close its embedding is. Folders are ordered by
// similarity, highest first, then by name ignoring case; folders without a
// score come last.
func (s *FavoriteService) WithSimilarity(ctx context.Context, userID int64, paperID string) ([]*models.FavoriteSimilarity, error) {
	favorites, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	paperID = strings.TrimSpace(paperID)
	var paperVec []float64
	if paperID != "" {
		if paper, _, ok := s.paperSrc.FindByID(ctx, paperID); ok {
			paperVec = paper.Embedding
		}
	}

	ids := make([]int64, len(favorites))
	for i, fav := range favorites {
		ids[i] = fav.ID
	}
	membership, err := s.favoriteRepo.FavoriteIDsContaining(ctx, paperID, ids)
	if err != nil {
		return nil, errors.NewDatabaseError("load memberships", err)
	}

	out := make([]*models.FavoriteSimilarity, 0, len(favorites))
	var best *float64
	for _, fav := range favorites {
		item := &models.FavoriteSimilarity{
			ID:       fav.ID,
			Name:     fav.Name,
			HasPaper: membership[fav.ID],
		}
		if len(paperVec) > 0 && len(fav.Embedding) > 0 {
			score := similarity.Cosine(paperVec, fav.Embedding)
			item.Similarity = &score
			if best == nil || score > *best {
				best = &score
			}
		}
		out = append(out, item)
	}

	if best != nil {
		for _, item := range out {
			if item.Similarity != nil && *item.Similarity == *best {
				item.IsTop = true
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	sort.SliceStable(out, func(i, j int) bool {
		return scoreOrNegative(out[i].Similarity) > scoreOrNegative(out[j].Similarity)
	})
	return out, nil
}

func scoreOrNegative(score *float64) float64 {
	if score == nil {
		return -1
	}
	return *score
}

// Papers resolves a folder's papers to cards, newest publication date
// first. Ids that no day file knows are skipped.
func (s *FavoriteService) Papers(ctx context.Context, userID, favoriteID int64) ([]*models.PaperCard, error) {
	if _, err := s.Get(ctx, userID, favoriteID); err != nil {
		return nil, err
	}
	ids, err := s.favoriteRepo.PaperIDs(ctx, favoriteID)
	if err != nil {
		return nil, errors.NewDatabaseError("list favorite papers", err)
	}

	cards := make([]*models.PaperCard, 0, len(ids))
	for _, id := range ids {
		paper, date, ok := s.paperSrc.FindByID(ctx, id)
		if !ok {
			continue
		}
		cards = append(cards, s.paperSrc.Card(*paper, date))
	}

	sort.SliceStable(cards, func(i, j int) bool {
		return pubDateKey(cards[i].PubDate) > pubDateKey(cards[j].PubDate)
	})
	return cards, nil
}

// pubDateKey orders valid dates; anything else sorts as the oldest
func pubDateKey(pubDate string) string {
	if len(pubDate) >= 10 {
		if d := pubDate[:10]; papers.ValidDate(d) {
			return d
		}
	}
	return ""
}

// SavedPaperIDs returns every paper id the user keeps in any folder
func (s *FavoriteService) SavedPaperIDs(ctx context.Context, userID int64) (map[string]bool, error) {
	ids, err := s.favoriteRepo.PaperIDsForUser(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("load saved papers", err)
	}
	return ids, nil
}
