package service

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/arxiv-daily/internal/errors"
	"github.com/arxiv-daily/internal/logging"
	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/papers"
	"github.com/arxiv-daily/internal/similarity"
	"github.com/arxiv-daily/internal/types"
)

// InvalidDateWarning is reported when the requested feed date cannot be parsed
const InvalidDateWarning = "Invalid date format, using latest available."

// FeedService assembles the daily feed for a user
type FeedService struct {
	paperSrc     PaperSource
	favoriteRepo FavoriteRepository
	history      *HistoryService
	filters      *FilterService
}

// NewFeedService creates a new feed service
func NewFeedService(paperSrc PaperSource, favoriteRepo FavoriteRepository, history *HistoryService, filters *FilterService) *FeedService {
	return &FeedService{
		paperSrc:     paperSrc,
		favoriteRepo: favoriteRepo,
		history:      history,
		filters:      filters,
	}
}

// FeedInput carries the feed query parameters. Empty lists fall back to
// the user's saved selection.
type FeedInput struct {
	Date         string
	Categories   []string
	SimFavorites []string
}

// PaperGroup is one tag bucket of the feed
type PaperGroup struct {
	Key    types.FilterGroup
	Papers []*models.PaperCard
}

// Resume is the position the feed page scrolls back to
type Resume struct {
	Date     string `json:"date"`
	PaperID  string `json:"paper_id"`
	Position int    `json:"position"`
}

// Feed is everything the feed page renders
type Feed struct {
	Date                  string
	PrevDate              string
	NextDate              string
	Warning               string
	Papers                []*models.PaperCard
	Groups                []PaperGroup
	CategoryOptions       []string
	SelectedCategories    []string
	Tags                  models.TagFilter
	Favorites             []*models.Favorite
	SelectedSimFavorites  []int64
	SelectedFavoriteNames []string
	Resume                *Resume
	SavedPaperIDs         map[string]bool
}

// Build resolves the target date, filters and ranks that day's papers and
// persists the selection that was used.
func (s *FeedService) Build(ctx context.Context, userID int64, input FeedInput) (*Feed, error) {
	logger := logging.FromContext(ctx).WithField("user_id", userID)

	saved, err := s.filters.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	latest, err := s.history.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}

	feed := &Feed{
		CategoryOptions: append([]string{}, types.DefaultCategories...),
		Tags:            saved.Tags,
	}
	feed.Date, feed.Warning = s.resolveDate(input.Date, saved, latest)

	favorites, err := s.favoriteRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("list favorites", err)
	}
	feed.Favorites = favorites

	categories := cleanStrings(input.Categories)
	if len(categories) == 0 {
		categories = saved.Categories
	}
	feed.SelectedCategories = keepAllowed(categories, types.DefaultCategories)

	owned := make(map[int64]bool, len(favorites))
	names := make(map[int64]string, len(favorites))
	allIDs := make([]int64, 0, len(favorites))
	for _, fav := range favorites {
		owned[fav.ID] = true
		names[fav.ID] = fav.Name
		allIDs = append(allIDs, fav.ID)
	}
	sims := ParseIDs(input.SimFavorites)
	if len(sims) == 0 {
		sims = saved.SimFavorites
	}
	sims = keepOwned(sims, owned)
	if len(sims) == 0 && !saved.HasRecord {
		sims = allIDs
	}
	feed.SelectedSimFavorites = sims
	feed.SelectedFavoriteNames = make([]string, 0, len(sims))
	for _, id := range sims {
		feed.SelectedFavoriteNames = append(feed.SelectedFavoriteNames, names[id])
	}

	if _, err := s.filters.Save(ctx, userID, FilterUpdate{
		Categories:   append([]string{}, feed.SelectedCategories...),
		SimFavorites: append([]int64{}, sims...),
	}); err != nil {
		return nil, err
	}

	cards := s.paperSrc.Cards(s.paperSrc.LoadDate(ctx, feed.Date), feed.Date)
	if len(feed.SelectedCategories) > 0 {
		cards = filterByCategory(cards, feed.SelectedCategories)
	}

	interests, err := s.favoriteRepo.Embeddings(ctx, userID, sims...)
	if err != nil {
		return nil, errors.NewDatabaseError("load favorite embeddings", err)
	}
	if len(interests) > 0 {
		attachSimilarity(cards, interests)
	}

	feed.Groups = groupByTags(cards, saved.Tags)
	feed.Papers = make([]*models.PaperCard, 0, len(cards))
	for _, group := range feed.Groups {
		feed.Papers = append(feed.Papers, group.Papers...)
	}

	feed.Resume, err = s.resume(ctx, userID, feed.Date, saved, latest)
	if err != nil {
		return nil, err
	}

	feed.SavedPaperIDs, err = s.favoriteRepo.PaperIDsForUser(ctx, userID)
	if err != nil {
		return nil, errors.NewDatabaseError("load saved papers", err)
	}
	for _, card := range feed.Papers {
		card.InFavorites = feed.SavedPaperIDs[card.ID]
	}

	feed.PrevDate, feed.NextDate = s.neighbours(feed.Date)

	logger.WithFields(map[string]interface{}{
		"date":   feed.Date,
		"papers": len(feed.Papers),
	}).Debug("Feed built")
	return feed, nil
}

// resolveDate picks the explicit date, then the saved cursor, then the
// latest bookmark, then the newest data file, then today.
func (s *FeedService) resolveDate(requested string, saved *models.UserFilter, latest *models.HistoryEntry) (string, string) {
	warning := ""
	if requested = strings.TrimSpace(requested); requested != "" {
		if papers.ValidDate(requested) {
			return requested, ""
		}
		warning = InvalidDateWarning
	}
	if papers.ValidDate(saved.LastDate) {
		return saved.LastDate, warning
	}
	if latest != nil && papers.ValidDate(latest.Date) {
		return latest.Date, warning
	}
	if date, ok := s.paperSrc.LatestDate(); ok {
		return date, warning
	}
	return today(), warning
}

// resume prefers the bookmark of the shown day, then the saved cursor when
// it points at that day, then the latest bookmark of any day.
func (s *FeedService) resume(ctx context.Context, userID int64, date string, saved *models.UserFilter, latest *models.HistoryEntry) (*Resume, error) {
	entry, err := s.history.ForDate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return &Resume{Date: entry.Date, PaperID: entry.PaperID, Position: entry.Position}, nil
	}
	if saved.HasRecord && saved.LastDate == date {
		return &Resume{Date: date, PaperID: saved.LastPaperID, Position: saved.LastPosition}, nil
	}
	if latest != nil {
		return &Resume{Date: latest.Date, PaperID: latest.PaperID, Position: latest.Position}, nil
	}
	return nil, nil
}

func (s *FeedService) neighbours(date string) (prev, next string) {
	dates, err := s.paperSrc.ListDates()
	if err != nil {
		return "", ""
	}
	i := sort.SearchStrings(dates, date)
	if i > 0 {
		prev = dates[i-1]
	}
	if i < len(dates) && dates[i] == date {
		i++
	}
	if i < len(dates) {
		next = dates[i]
	}
	return prev, next
}

// SplitCategories splits a category field on commas and whitespace
func SplitCategories(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

func filterByCategory(cards []*models.PaperCard, selected []string) []*models.PaperCard {
	want := make(map[string]bool, len(selected))
	for _, c := range selected {
		want[c] = true
	}
	out := make([]*models.PaperCard, 0, len(cards))
	for _, card := range cards {
		for _, c := range SplitCategories(card.Category) {
			if want[c] {
				out = append(out, card)
				break
			}
		}
	}
	return out
}

func attachSimilarity(cards []*models.PaperCard, interests [][]float64) {
	for _, card := range cards {
		if score, ok := similarity.MaxSimilarity(card.Embedding, interests); ok {
			card.Similarity = &score
		}
	}
}

// Classify places a paper's tags into a group. The blacklist wins over the whitelist.
func Classify(tags []string, filter models.TagFilter) types.FilterGroup {
	has := func(list []string) bool {
		for _, t := range tags {
			for _, l := range list {
				if t == l {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has(filter.Blacklist):
		return types.GroupBlack
	case has(filter.Whitelist):
		return types.GroupWhite
	default:
		return types.GroupNeutral
	}
}

// groupByTags buckets cards and orders each bucket by similarity, highest
// first. Cards without a score count as zero.
func groupByTags(cards []*models.PaperCard, filter models.TagFilter) []PaperGroup {
	groups := []PaperGroup{
		{Key: types.GroupWhite, Papers: []*models.PaperCard{}},
		{Key: types.GroupNeutral, Papers: []*models.PaperCard{}},
		{Key: types.GroupBlack, Papers: []*models.PaperCard{}},
	}
	index := map[types.FilterGroup]int{types.GroupWhite: 0, types.GroupNeutral: 1, types.GroupBlack: 2}

	for _, card := range cards {
		card.FilterGroup = Classify(card.Tags, filter)
		i := index[card.FilterGroup]
		groups[i].Papers = append(groups[i].Papers, card)
	}
	for _, group := range groups {
		bucket := group.Papers
		sort.SliceStable(bucket, func(i, j int) bool {
			return scoreOrZero(bucket[i].Similarity) > scoreOrZero(bucket[j].Similarity)
		})
	}
	return groups
}

func scoreOrZero(score *float64) float64 {
	if score == nil {
		return 0
	}
	return *score
}
