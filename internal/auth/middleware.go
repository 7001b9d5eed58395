package auth

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RequireAuth is middleware for the web UI. A valid session puts the owner
// in the request context; without one, non-public pages redirect to the
// sign-in page. API paths (/api/...) are handled by RequireAPIAuth.
func RequireAuth(sessions *SessionStore, users *UserStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		if u := sessionUser(r, sessions, users); u != nil {
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		http.Redirect(w, r, "/signin", http.StatusSeeOther)
	})
}

// rateLimiter tracks failed API authentication attempts per IP.
type rateLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	now      func() time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{attempts: make(map[string][]time.Time), now: time.Now}
}

const (
	rateLimitWindow  = 1 * time.Minute
	rateLimitMaxFail = 10
)

// limited reports whether ip already used up its failures in the window.
func (rl *rateLimiter) limited(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.prune(ip)) >= rateLimitMaxFail
}

// recordFailure records a failed attempt.
func (rl *rateLimiter) recordFailure(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.attempts[ip] = append(rl.prune(ip), rl.now())
}

func (rl *rateLimiter) prune(ip string) []time.Time {
	cutoff := rl.now().Add(-rateLimitWindow)
	valid := rl.attempts[ip][:0]
	for _, t := range rl.attempts[ip] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) == 0 {
		delete(rl.attempts, ip)
		return nil
	}
	rl.attempts[ip] = valid
	return valid
}

// RequireAPIAuth is middleware for /api/ routes. It accepts a bearer token
// or the web session cookie and puts the owner in the request context.
// Non-API routes and the token endpoints pass through untouched.
// Returns 401 for missing or invalid credentials, 429 once an IP has failed
// too often within a minute.
func RequireAPIAuth(tokens *TokenIssuer, sessions *SessionStore, users *UserStore, next http.Handler) http.Handler {
	limiter := newRateLimiter()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || isPublicAPIPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if limiter.limited(ip) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			claims, err := tokens.Parse(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				limiter.recordFailure(ip)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			u, err := users.GetByID(r.Context(), claims.Subject)
			if err != nil {
				limiter.recordFailure(ip)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
			return
		}

		if u := sessionUser(r, sessions, users); u != nil {
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
			return
		}

		limiter.recordFailure(ip)
		writeError(w, http.StatusUnauthorized, "authorization required")
	})
}

func sessionUser(r *http.Request, sessions *SessionStore, users *UserStore) *User {
	userID, err := sessions.Validate(r)
	if err != nil {
		return nil
	}
	u, err := users.GetByID(r.Context(), userID)
	if err != nil {
		return nil
	}
	return u
}

func isPublicPath(path string) bool {
	switch path {
	case "/signin", "/signup", "/signout", "/health":
		return true
	}
	if strings.HasPrefix(path, "/static/") {
		return true
	}
	// Passkey login endpoints must be public (user isn't authenticated yet)
	if path == "/passkey/login/begin" || path == "/passkey/login/finish" {
		return true
	}
	return false
}

func isPublicAPIPath(path string) bool {
	return path == "/api/token" || path == "/api/register"
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
