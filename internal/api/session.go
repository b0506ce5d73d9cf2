package api

import (
	"net/http"
	"net/url"

	"github.com/arxiv-daily/internal/auth"
	"github.com/arxiv-daily/internal/logging"
	"github.com/arxiv-daily/internal/models"
)

// SessionMiddleware resolves the signed-in user. In no-auth mode every
// request is bound to the default user.
func (s *Server) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		var user *models.User
		if s.config.NoAuthMode {
			u, err := s.users.EnsureDefaultUser(ctx, s.config.DefaultUsername, s.config.DefaultPassword)
			if err != nil {
				logger.WithError(err).Error("Failed to load default user")
			} else {
				user = u
			}
		} else if claims, err := s.sessions.FromRequest(r); err == nil {
			u, err := s.users.Get(ctx, claims.UserID)
			if err != nil {
				// the account is gone or unreadable; drop the stale cookie
				logger.WithError(err).WithField("user_id", claims.UserID).Warn("Session user not found")
				s.sessions.SignOut(w)
			} else {
				user = u
			}
		}

		if user != nil {
			ctx = auth.WithUser(ctx, user)
			ctx = logging.WithLogger(ctx, logger.WithField("user_id", user.ID))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUser rejects anonymous requests: JSON clients get 401, browsers
// are sent to the login page.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.UserFromContext(r.Context()) != nil {
			next(w, r)
			return
		}
		if wantsJSON(r) || r.Header.Get("Content-Type") == "application/json" {
			respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "Please log in to continue.", nil)
			return
		}
		setFlash(w, "warning", "Please log in to continue.")
		http.Redirect(w, r, "/auth/login?next="+url.QueryEscape(r.URL.Path), http.StatusFound)
	}
}

// currentUser returns the user set by SessionMiddleware
func currentUser(r *http.Request) *models.User {
	return auth.UserFromContext(r.Context())
}
