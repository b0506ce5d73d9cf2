package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/arxiv-daily/internal/errors"
	"github.com/arxiv-daily/internal/logging"
	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/service"
	"github.com/arxiv-daily/internal/types"
)

type settingsPage struct {
	Filters         *models.UserFilter
	CategoryOptions []string
	TagOptions      []string
	Favorites       []*models.Favorite
	Languages       []types.Language
	History         []*models.HistoryEntry
}

// recentHistoryLimit is how many bookmarks the settings page lists
const recentHistoryLimit = 10

// tagOptions merges the tag pool with whatever the user already saved
func tagOptions(pool []string, filters *models.UserFilter) []string {
	set := make(map[string]struct{}, len(pool))
	for _, list := range [][]string{pool, filters.Tags.Whitelist, filters.Tags.Blacklist} {
		for _, tag := range list {
			if tag != "" {
				set[tag] = struct{}{}
			}
		}
	}
	options := make([]string, 0, len(set))
	for tag := range set {
		options = append(options, tag)
	}
	sort.Strings(options)
	return options
}

func selectAllowed(values []string, allowed []string) []string {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	out := []string{}
	for _, v := range values {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}

// handleSettings handles GET/POST /settings
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := currentUser(r)

	filters, err := s.filters.Load(ctx, user.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	favorites, err := s.favorites.List(ctx, user.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	history, err := s.history.List(ctx, user.ID, recentHistoryLimit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	page := settingsPage{
		Filters:         filters,
		CategoryOptions: append([]string{}, types.DefaultCategories...),
		TagOptions:      tagOptions(s.papers.TagPool(ctx), filters),
		Favorites:       favorites,
		Languages:       []types.Language{types.LanguageEnglish, types.LanguageChinese},
		History:         history,
	}

	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "settings.html", "Settings", page)
		return
	}

	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, "/settings", "warning", "Invalid form.")
		return
	}

	owned := make(map[int64]bool, len(favorites))
	for _, fav := range favorites {
		owned[fav.ID] = true
	}
	sims := []int64{}
	for _, id := range service.ParseIDs(r.PostForm["sim_favorite"]) {
		if owned[id] {
			sims = append(sims, id)
		}
	}

	_, err = s.filters.Save(ctx, user.ID, service.FilterUpdate{
		Categories: selectAllowed(r.PostForm["category"], page.CategoryOptions),
		Tags: &models.TagFilter{
			Whitelist: selectAllowed(r.PostForm["tag_whitelist"], page.TagOptions),
			Blacklist: selectAllowed(r.PostForm["tag_blacklist"], page.TagOptions),
		},
		SimFavorites: sims,
	})
	if err != nil {
		flashFailure(w, r, "/settings", err)
		return
	}

	if lang := strings.TrimSpace(r.PostForm.Get("language")); lang != "" && lang != string(user.Language()) {
		if err := s.users.SetLanguage(ctx, user.ID, lang); err != nil {
			flashFailure(w, r, "/settings", err)
			return
		}
	}

	redirectWithFlash(w, r, "/settings", "success", "Settings saved.")
}

// handleDeleteAccount handles POST /settings/account/delete. Owned rows go
// with the user through the foreign keys.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if err := s.users.Delete(r.Context(), user.ID); err != nil {
		if errors.IsSystemError(err) {
			respondServiceError(w, r, err)
			return
		}
		redirectWithFlash(w, r, "/settings", "warning", errors.UserMessage(err))
		return
	}
	logging.FromContext(r.Context()).Info("Account deleted")

	if s.config.NoAuthMode {
		// the next request recreates the default user with empty settings
		redirectWithFlash(w, r, "/", "info", "Account data cleared.")
		return
	}
	s.sessions.SignOut(w)
	redirectWithFlash(w, r, "/auth/signup", "info", "Your account has been deleted.")
}
