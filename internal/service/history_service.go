package service

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/arxiv-daily/internal/errors"
	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/papers"
	"github.com/arxiv-daily/internal/storage"
)

// HistoryService records where a user stopped reading each day
type HistoryService struct {
	historyRepo HistoryRepository
	filters     *FilterService
}

// NewHistoryService creates a new history service
func NewHistoryService(historyRepo HistoryRepository, filters *FilterService) *HistoryService {
	return &HistoryService{historyRepo: historyRepo, filters: filters}
}

// RecordInput is the bookmark posted by the feed page
type RecordInput struct {
	PaperID  string `json:"paper_id"`
	Date     string `json:"date"`
	Position int    `json:"position"`
}

// Record stores the bookmark for the day, overwriting an earlier one,
// and moves the feed resume cursor to it.
func (s *HistoryService) Record(ctx context.Context, userID int64, input RecordInput) (*models.HistoryEntry, error) {
	paperID := strings.TrimSpace(input.PaperID)
	if paperID == "" {
		return nil, errors.NewValidationError("paper_id", "Missing paper id.")
	}
	date := strings.TrimSpace(input.Date)
	if date == "" {
		date = today()
	}
	if !papers.ValidDate(date) {
		return nil, errors.NewValidationError("date", "Invalid date format.")
	}
	position := input.Position
	if position < 0 {
		position = 0
	}

	entry := &models.HistoryEntry{UserID: userID, PaperID: paperID, Date: date, Position: position}
	if err := s.historyRepo.Upsert(ctx, entry); err != nil {
		if stderrors.Is(err, storage.ErrForeignKey) {
			return nil, errors.NewNotFoundError("User", formatID(userID))
		}
		return nil, errors.NewDatabaseError("record history", err)
	}

	if err := s.filters.SaveCursor(ctx, userID, date, paperID, position); err != nil {
		return nil, err
	}
	return entry, nil
}

// ForDate returns the bookmark of one day, nil when there is none
func (s *HistoryService) ForDate(ctx context.Context, userID int64, date string) (*models.HistoryEntry, error) {
	entry, err := s.historyRepo.Get(ctx, userID, date)
	return optionalEntry(entry, err, "load history")
}

// Latest returns the bookmark with the newest date, nil when there is none
func (s *HistoryService) Latest(ctx context.Context, userID int64) (*models.HistoryEntry, error) {
	entry, err := s.historyRepo.Latest(ctx, userID)
	return optionalEntry(entry, err, "load latest history")
}

// List returns recent bookmarks, newest date first
func (s *HistoryService) List(ctx context.Context, userID int64, limit int) ([]*models.HistoryEntry, error) {
	entries, err := s.historyRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, errors.NewDatabaseError("list history", err)
	}
	return entries, nil
}

func optionalEntry(entry *models.HistoryEntry, err error, op string) (*models.HistoryEntry, error) {
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.NewDatabaseError(op, err)
	}
	return entry, nil
}
