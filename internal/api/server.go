// Package api provides the HTTP server: HTML pages for the feed, papers,
// favorites and settings plus the small JSON endpoints they call.
package api

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/arxiv-daily/internal/auth"
	"github.com/arxiv-daily/internal/logging"
	"github.com/arxiv-daily/internal/models"
	"github.com/arxiv-daily/internal/search"
	"github.com/arxiv-daily/internal/service"
	"github.com/arxiv-daily/internal/worker"
	"github.com/gorilla/mux"
)

// Service interfaces for dependency injection and testing

// UserServiceInterface defines the account operations the handlers use
type UserServiceInterface interface {
	Register(ctx context.Context, input service.CredentialsInput) (*models.User, error)
	Login(ctx context.Context, input service.CredentialsInput) (*models.User, error)
	EnsureDefaultUser(ctx context.Context, username, password string) (*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	SetLanguage(ctx context.Context, id int64, lang string) error
	Delete(ctx context.Context, id int64) error
}

// FavoriteServiceInterface defines the favorite folder operations
type FavoriteServiceInterface interface {
	List(ctx context.Context, userID int64) ([]*models.Favorite, error)
	Get(ctx context.Context, userID, favoriteID int64) (*models.Favorite, error)
	Create(ctx context.Context, userID int64, name string) (*models.Favorite, error)
	Rename(ctx context.Context, userID, favoriteID int64, name string) error
	Delete(ctx context.Context, userID, favoriteID int64) (*models.Favorite, error)
	AddPaper(ctx context.Context, userID int64, input service.AddPaperInput) (int, error)
	RemovePaper(ctx context.Context, userID, favoriteID int64, paperID string) error
	WithSimilarity(ctx context.Context, userID int64, paperID string) ([]*models.FavoriteSimilarity, error)
	Papers(ctx context.Context, userID, favoriteID int64) ([]*models.PaperCard, error)
}

// FilterServiceInterface defines the saved selection operations
type FilterServiceInterface interface {
	Load(ctx context.Context, userID int64) (*models.UserFilter, error)
	Save(ctx context.Context, userID int64, update service.FilterUpdate) (*models.UserFilter, error)
}

// HistoryServiceInterface defines the bookmark operations
type HistoryServiceInterface interface {
	Record(ctx context.Context, userID int64, input service.RecordInput) (*models.HistoryEntry, error)
	List(ctx context.Context, userID int64, limit int) ([]*models.HistoryEntry, error)
}

// FeedServiceInterface builds the daily feed
type FeedServiceInterface interface {
	Build(ctx context.Context, userID int64, input service.FeedInput) (*service.Feed, error)
}

// PaperStore defines the paper lookups the handlers use
type PaperStore interface {
	FindByID(ctx context.Context, id string) (*models.Paper, string, bool)
	Card(p models.Paper, date string) *models.PaperCard
	TagPool(ctx context.Context) []string
	ImageFile(rel string) (string, error)
}

// Searcher runs full-text queries
type Searcher interface {
	Search(query string, limit int) ([]*search.Result, error)
}

// IndexStatus reports on the background search reindex
type IndexStatus interface {
	Status() *worker.ReindexStatus
}

// Services bundles the handler dependencies
type Services struct {
	Users     UserServiceInterface
	Favorites FavoriteServiceInterface
	Filters   FilterServiceInterface
	History   HistoryServiceInterface
	Feed      FeedServiceInterface
	Papers    PaperStore
	Search    Searcher
	Reindex   IndexStatus // optional
	Sessions  *auth.SessionManager
}

// Server represents the HTTP server.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	config      *ServerConfig
	users       UserServiceInterface
	favorites   FavoriteServiceInterface
	filters     FilterServiceInterface
	history     HistoryServiceInterface
	feed        FeedServiceInterface
	papers      PaperStore
	search      Searcher
	reindex     IndexStatus
	sessions    *auth.SessionManager
	authLimiter *RateLimiter
	templates   map[string]*template.Template
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// NoAuthMode binds every request to the default user
	NoAuthMode      bool
	DefaultUsername string
	DefaultPassword string

	AuthRPS   int // Login and signup attempts per second per client IP
	AuthBurst int
}

// NewServer creates a new server instance.
func NewServer(config *ServerConfig, services *Services) (*Server, error) {
	templates, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:      mux.NewRouter(),
		config:      config,
		users:       services.Users,
		favorites:   services.Favorites,
		filters:     services.Filters,
		history:     services.History,
		feed:        services.Feed,
		papers:      services.Papers,
		search:      services.Search,
		reindex:     services.Reindex,
		sessions:    services.Sessions,
		authLimiter: NewRateLimiter(config.AuthRPS, config.AuthBurst),
		templates:   templates,
	}

	s.setupRouter()

	return s, nil
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Set up middleware (order matters!)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(s.SessionMiddleware)
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Auth pages
	authRoutes := s.router.PathPrefix("/auth").Subrouter()
	authRoutes.HandleFunc("/signup", s.limitPosts(s.handleSignup)).Methods("GET", "POST")
	authRoutes.HandleFunc("/login", s.limitPosts(s.handleLogin)).Methods("GET", "POST")
	authRoutes.HandleFunc("/logout", s.handleLogout).Methods("GET")

	// Feed and papers
	s.router.HandleFunc("/", s.requireUser(s.handleIndex)).Methods("GET")
	s.router.HandleFunc("/paper/{id}", s.requireUser(s.handlePaperDetail)).Methods("GET")
	s.router.HandleFunc("/search", s.requireUser(s.handleSearch)).Methods("GET")
	s.router.HandleFunc("/history", s.requireUser(s.handleSaveHistory)).Methods("POST")
	s.router.PathPrefix("/data/images/").Handler(s.requireUser(s.handleDataImage)).Methods("GET")

	// Favorites
	s.router.HandleFunc("/favorites", s.requireUser(s.handleFavorites)).Methods("GET")
	s.router.HandleFunc("/api/favorites", s.requireUser(s.handleFavoritesAPI)).Methods("GET")
	s.router.HandleFunc("/favorites/create", s.requireUser(s.handleCreateFavorite)).Methods("POST")
	s.router.HandleFunc("/favorites/add", s.requireUser(s.handleAddToFavorites)).Methods("POST")
	s.router.HandleFunc("/favorites/{id:[0-9]+}/remove", s.requireUser(s.handleRemoveFromFavorite)).Methods("POST")
	s.router.HandleFunc("/favorites/{id:[0-9]+}/delete", s.requireUser(s.handleDeleteFavorite)).Methods("POST")
	s.router.HandleFunc("/favorites/{id:[0-9]+}/rename", s.requireUser(s.handleRenameFavorite)).Methods("POST")

	// Settings
	s.router.HandleFunc("/settings", s.requireUser(s.handleSettings)).Methods("GET", "POST")
	s.router.HandleFunc("/settings/account/delete", s.requireUser(s.handleDeleteAccount)).Methods("POST")
}

// Handler returns the root handler with all middleware applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleHealth handles health check requests. A failed reindex reports
// "degraded", still with status 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.reindex == nil {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status := s.reindex.Status()
	overall := "ok"
	if status.LastError != "" {
		overall = "degraded"
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": overall,
		"search": status,
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	logging.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
