package api

import (
	"net/http"
	"strings"

	"github.com/arxiv-daily/internal/errors"
	"github.com/arxiv-daily/internal/service"
)

type authPage struct {
	Next     string
	Username string
}

// safeNext keeps only local paths so the login form cannot redirect off-site
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func credentialsFromForm(r *http.Request) service.CredentialsInput {
	return service.CredentialsInput{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
}

// handleSignup handles GET/POST /auth/signup
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "signup.html", "Sign up", authPage{})
		return
	}

	input := credentialsFromForm(r)
	user, err := s.users.Register(r.Context(), input)
	if err != nil {
		s.render(w, r, errors.GetHTTPStatusCode(err), "signup.html", "Sign up",
			authPage{Username: strings.TrimSpace(input.Username)},
			flashMessage{Category: "danger", Message: errors.UserMessage(err)})
		return
	}

	if err := s.sessions.SignIn(w, user.ID, user.Username); err != nil {
		respondServiceError(w, r, errors.NewInternalError("failed to sign in", err))
		return
	}
	redirectWithFlash(w, r, "/", "success", "Signup successful.")
}

// handleLogin handles GET/POST /auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.config.NoAuthMode {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	next := r.URL.Query().Get("next")
	if r.Method == http.MethodGet {
		s.render(w, r, http.StatusOK, "login.html", "Log in", authPage{Next: next})
		return
	}

	if formNext := r.PostFormValue("next"); formNext != "" {
		next = formNext
	}
	input := credentialsFromForm(r)
	user, err := s.users.Login(r.Context(), input)
	if err != nil {
		s.render(w, r, errors.GetHTTPStatusCode(err), "login.html", "Log in",
			authPage{Next: next, Username: strings.TrimSpace(input.Username)},
			flashMessage{Category: "danger", Message: errors.UserMessage(err)})
		return
	}

	if err := s.sessions.SignIn(w, user.ID, user.Username); err != nil {
		respondServiceError(w, r, errors.NewInternalError("failed to sign in", err))
		return
	}
	redirectWithFlash(w, r, safeNext(next), "success", "Welcome back!")
}

// handleLogout handles GET /auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.config.NoAuthMode {
		// the default user stays signed in
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.sessions.SignOut(w)
	redirectWithFlash(w, r, "/auth/login", "info", "Logged out.")
}
