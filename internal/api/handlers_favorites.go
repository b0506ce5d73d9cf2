package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/arxiv-daily/internal/errors"
	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/service"
	"github.com/gorilla/mux"
)

type favoritesPage struct {
	Favorites []*models.Favorite
	Selected  *models.Favorite
	Papers    []*models.PaperCard
}

func favoriteIDVar(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func favoritesURL(id int64) string {
	if id == 0 {
		return "/favorites"
	}
	return "/favorites?favorite_id=" + strconv.FormatInt(id, 10)
}

// returnTarget picks the form's return_to, then the referring local page, then fallback
func returnTarget(r *http.Request, fallback string) string {
	if target := r.PostFormValue("return_to"); target != "" {
		return safeNext(target)
	}
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Path != "" && (ref.Host == "" || ref.Host == r.Host) {
		target := ref.Path
		if ref.RawQuery != "" {
			target += "?" + ref.RawQuery
		}
		return safeNext(target)
	}
	return fallback
}

// flashFailure turns a service error into a flash on a redirect. System
// errors are answered directly.
func flashFailure(w http.ResponseWriter, r *http.Request, target string, err error) {
	if errors.IsSystemError(err) {
		respondServiceError(w, r, err)
		return
	}
	redirectWithFlash(w, r, target, "warning", errors.UserMessage(err))
}

// handleFavorites handles GET /favorites - the folder manager
func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	favorites, err := s.favorites.List(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		respondJSON(w, http.StatusOK, map[string]interface{}{"favorites": favorites})
		return
	}

	page := favoritesPage{Favorites: favorites, Papers: []*models.PaperCard{}}
	if len(favorites) == 0 {
		s.render(w, r, http.StatusOK, "favorites.html", "Favorites", page)
		return
	}

	var extra []flashMessage
	if raw := r.URL.Query().Get("favorite_id"); raw != "" {
		id, _ := strconv.ParseInt(raw, 10, 64)
		for _, fav := range favorites {
			if fav.ID == id {
				page.Selected = fav
			}
		}
		if page.Selected == nil {
			extra = append(extra, flashMessage{Category: "warning", Message: "Favorite not found."})
		}
	}
	if page.Selected == nil {
		page.Selected = favorites[0]
	}

	page.Papers, err = s.favorites.Papers(r.Context(), user.ID, page.Selected.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "favorites.html", "Favorites", page, extra...)
}

// handleFavoritesAPI handles GET /api/favorites?paper_id=
func (s *Server) handleFavoritesAPI(w http.ResponseWriter, r *http.Request) {
	favorites, err := s.favorites.WithSimilarity(r.Context(), currentUser(r).ID, r.URL.Query().Get("paper_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"favorites": favorites})
}

// handleCreateFavorite handles POST /favorites/create
func (s *Server) handleCreateFavorite(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PostFormValue("name"))
	if name == "" {
		name = strings.TrimSpace(r.PostFormValue("new_favorite_name"))
	}
	target := returnTarget(r, "/favorites")

	fav, err := s.favorites.Create(r.Context(), currentUser(r).ID, name)
	if err != nil {
		if wantsJSON(r) {
			catErr := errors.Categorize(err)
			respondJSON(w, catErr.StatusCode, map[string]string{"error": errors.UserMessage(err)})
			return
		}
		flashFailure(w, r, target, err)
		return
	}

	rememberCreatedFavorite(w, fav.ID)
	if wantsJSON(r) {
		respondJSON(w, http.StatusOK, map[string]interface{}{"id": fav.ID, "name": fav.Name, "status": "ok"})
		return
	}
	redirectWithFlash(w, r, target, "success", "Favorite created.")
}

// handleAddToFavorites handles POST /favorites/add
func (s *Server) handleAddToFavorites(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectWithFlash(w, r, "/", "warning", "Invalid form.")
		return
	}
	paperID := strings.TrimSpace(r.PostForm.Get("paper_id"))
	if paperID == "" {
		redirectWithFlash(w, r, "/", "warning", "Missing paper id.")
		return
	}
	target := "/paper/" + url.PathEscape(paperID)

	added, err := s.favorites.AddPaper(r.Context(), currentUser(r).ID, service.AddPaperInput{
		PaperID:         paperID,
		FavoriteIDs:     service.ParseIDs(r.PostForm["favorite_ids"]),
		NewFavoriteName: r.PostForm.Get("new_favorite_name"),
	})
	if err != nil {
		flashFailure(w, r, target, err)
		return
	}

	if added > 0 {
		redirectWithFlash(w, r, target, "success", fmt.Sprintf("Added to %d favorite(s).", added))
		return
	}
	redirectWithFlash(w, r, target, "info", "No favorites selected.")
}

// handleRemoveFromFavorite handles POST /favorites/{id}/remove
func (s *Server) handleRemoveFromFavorite(w http.ResponseWriter, r *http.Request) {
	id := favoriteIDVar(r)
	user := currentUser(r)

	if _, err := s.favorites.Get(r.Context(), user.ID, id); err != nil {
		flashFailure(w, r, "/favorites", err)
		return
	}
	paperID := strings.TrimSpace(r.PostFormValue("paper_id"))
	if paperID == "" {
		http.Redirect(w, r, favoritesURL(id), http.StatusFound)
		return
	}
	if err := s.favorites.RemovePaper(r.Context(), user.ID, id, paperID); err != nil {
		flashFailure(w, r, favoritesURL(id), err)
		return
	}
	redirectWithFlash(w, r, favoritesURL(id), "success", "Removed from favorite.")
}

// handleDeleteFavorite handles POST /favorites/{id}/delete
func (s *Server) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.favorites.Delete(r.Context(), currentUser(r).ID, favoriteIDVar(r))
	if err != nil {
		flashFailure(w, r, "/favorites", err)
		return
	}
	redirectWithFlash(w, r, "/favorites", "success", fmt.Sprintf("Deleted favorite %q.", deleted.Name))
}

// handleRenameFavorite handles POST /favorites/{id}/rename
func (s *Server) handleRenameFavorite(w http.ResponseWriter, r *http.Request) {
	id := favoriteIDVar(r)
	err := s.favorites.Rename(r.Context(), currentUser(r).ID, id, r.PostFormValue("name"))
	if err != nil {
		target := favoritesURL(id)
		if errors.Categorize(err).Category == errors.CategoryNotFound {
			target = "/favorites"
		}
		flashFailure(w, r, target, err)
		return
	}
	redirectWithFlash(w, r, favoritesURL(id), "success", "Folder renamed.")
}
