package api

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/arxiv-daily/internal/logging"
	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{
	"index.html",
	"paper.html",
	"favorites.html",
	"settings.html",
	"search.html",
	"login.html",
	"signup.html",
}

// pageData is the root value of every template
type pageData struct {
	Title   string
	User    *models.User
	Lang    types.Language
	NoAuth  bool
	Flashes []flashMessage
	Page    interface{}
}

var templateFuncs = template.FuncMap{
	"title": func(c *models.PaperCard, lang types.Language) string { return c.Title(lang) },
	"abstract": func(c *models.PaperCard, lang types.Language) string {
		return c.Abstract(lang)
	},
	"summary": func(c *models.PaperCard, lang types.Language) string { return c.Summary(lang) },
	"score": func(v *float64) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%.3f", *v)
	},
	"cardOf": func(c *models.PaperCard, lang types.Language) map[string]interface{} {
		return map[string]interface{}{"Card": c, "Lang": lang}
	},
	"join": strings.Join,
	"hasString": func(list []string, v string) bool {
		for _, item := range list {
			if item == v {
				return true
			}
		}
		return false
	},
	"hasID": func(list []int64, v int64) bool {
		for _, item := range list {
			if item == v {
				return true
			}
		}
		return false
	},
}

// loadTemplates parses each page together with the shared layout
func loadTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New(page).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", page, err)
		}
		templates[page] = t
	}
	return templates, nil
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data interface{}, extra ...flashMessage) {
	t, ok := s.templates[page]
	if !ok {
		respondError(w, http.StatusInternalServerError, ErrCodeInternalError, "unknown page", nil)
		return
	}

	user := currentUser(r)
	lang := types.LanguageEnglish
	if user != nil {
		lang = user.Language()
	}

	root := pageData{
		Title:   title,
		User:    user,
		Lang:    lang,
		NoAuth:  s.config.NoAuthMode,
		Flashes: append(popFlashes(w, r), extra...),
		Page:    data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", root); err != nil {
		logging.FromContext(r.Context()).WithError(err).WithField("page", page).Error("Failed to render page")
		http.Error(w, "An internal server error occurred", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirectWithFlash queues a message and sends the client to target
func redirectWithFlash(w http.ResponseWriter, r *http.Request, target, category, message string) {
	if message != "" {
		setFlash(w, category, message)
	}
	http.Redirect(w, r, target, http.StatusFound)
}
