package api

import (
	"net"
	"net/http"
	"sync"

	"github.com/arxiv-daily/internal/errors"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex

	limit     rate.Limit
	burstSize int
}

// NewRateLimiter creates a new rate limiter. A non-positive rps disables limiting.
func NewRateLimiter(rps, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limiters:  make(map[string]*rate.Limiter),
		limit:     limit,
		burstSize: burst,
	}
}

// getLimiter returns the rate limiter for a client key
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check in case another goroutine created it
	if limiter, exists := rl.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.limit, rl.burstSize)
	rl.limiters[key] = limiter
	return limiter
}

// Allow reports whether the client may proceed now
func (rl *RateLimiter) Allow(r *http.Request) bool {
	return rl.getLimiter(clientIP(r)).Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// limitPosts wraps a handler so that POST requests draw from the caller's bucket
func (s *Server) limitPosts(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && !s.authLimiter.Allow(r) {
			err := errors.NewRateLimitError()
			if wantsJSON(r) {
				respondServiceError(w, r, err)
				return
			}
			page, title := "login.html", "Log in"
			if r.URL.Path == "/auth/signup" {
				page, title = "signup.html", "Sign up"
			}
			s.render(w, r, err.StatusCode, page, title, authPage{Next: r.URL.Query().Get("next")},
				flashMessage{Category: "danger", Message: err.Message})
			return
		}
		next(w, r)
	}
}
