package api

import (
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/arxiv-daily/internal/errors"
	"github.com/arxiv-daily/internal/logging"
	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/papers"
	"github.com/arxiv-daily/internal/service"
	"github.com/gorilla/mux"
)

type indexPage struct {
	Feed *service.Feed
}

type paperPage struct {
	Paper     *models.PaperCard
	PDFLink   string
	Favorites []*models.FavoriteSimilarity
}

type searchHit struct {
	Paper      *models.PaperCard
	Score      float64
	Highlights []template.HTML
}

// highlights flattens the fragments in field order. The index escapes the
// paper text and adds only <mark> tags, so the fragments are safe markup.
func highlights(fragments map[string][]string) []template.HTML {
	fields := make([]string, 0, len(fragments))
	for field := range fragments {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	out := []template.HTML{}
	for _, field := range fields {
		for _, frag := range fragments[field] {
			out = append(out, template.HTML(frag))
		}
	}
	return out
}

type searchPage struct {
	Query   string
	Results []searchHit
}

// handleIndex handles GET / - the daily feed
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	query := r.URL.Query()

	feed, err := s.feed.Build(r.Context(), user.ID, service.FeedInput{
		Date:         query.Get("date"),
		Categories:   query["category"],
		SimFavorites: query["sim_favorite"],
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	var extra []flashMessage
	if feed.Warning != "" {
		extra = append(extra, flashMessage{Category: "warning", Message: feed.Warning})
	}
	s.render(w, r, http.StatusOK, "index.html", feed.Date, indexPage{Feed: feed}, extra...)
}

// handlePaperDetail handles GET /paper/{id}
func (s *Server) handlePaperDetail(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	paperID := mux.Vars(r)["id"]

	paper, date, ok := s.papers.FindByID(r.Context(), paperID)
	if !ok {
		redirectWithFlash(w, r, "/", "warning", "Paper not found.")
		return
	}
	card := s.papers.Card(*paper, date)

	favorites, err := s.favorites.WithSimilarity(r.Context(), user.ID, paper.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if created := popCreatedFavorite(w, r); created != 0 {
		for _, fav := range favorites {
			if fav.ID == created {
				fav.AutoChecked = true
			}
		}
	}

	s.render(w, r, http.StatusOK, "paper.html", card.Title(user.Language()), paperPage{
		Paper:     card,
		PDFLink:   papers.PDFLink(*paper),
		Favorites: favorites,
	})
}

// historyRequest accepts the position as a number or a numeric string
type historyRequest struct {
	PaperID  string      `json:"paper_id"`
	Position interface{} `json:"position"`
	Date     string      `json:"date"`
}

func (h historyRequest) position() (int, bool) {
	switch v := h.Position.(type) {
	case nil:
		return 0, true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// handleSaveHistory handles POST /history
func (s *Server) handleSaveHistory(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := parseJSONBody(r, &req); err != nil {
		req = historyRequest{}
	}
	if strings.TrimSpace(req.PaperID) == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"status": "ignored"})
		return
	}
	position, ok := req.position()
	if !ok {
		respondServiceError(w, r, errors.NewValidationError("position", "Position must be a number."))
		return
	}

	_, err := s.history.Record(r.Context(), currentUser(r).ID, service.RecordInput{
		PaperID:  req.PaperID,
		Date:     req.Date,
		Position: position,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDataImage handles GET /data/images/{path}
func (s *Server) handleDataImage(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, papers.ImageRoute)
	file, err := s.papers.ImageFile(rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, file)
}

// handleSearch handles GET /search?q=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	page := searchPage{Query: query, Results: []searchHit{}}

	if query != "" && s.search != nil {
		results, err := s.search.Search(query, 50)
		if err != nil {
			logging.FromContext(r.Context()).WithError(err).WithField("query", query).Warn("Search failed")
			s.render(w, r, http.StatusOK, "search.html", "Search", page,
				flashMessage{Category: "warning", Message: "Search is unavailable right now."})
			return
		}
		for _, res := range results {
			paper, date, ok := s.papers.FindByID(r.Context(), res.ID)
			if !ok {
				continue
			}
			page.Results = append(page.Results, searchHit{
				Paper:      s.papers.Card(*paper, date),
				Score:      res.Score,
				Highlights: highlights(res.Fragments),
			})
		}
	}

	s.render(w, r, http.StatusOK, "search.html", "Search", page)
}
