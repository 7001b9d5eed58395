package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/evcraddock/turnover/internal/auth"
)

type signInData struct {
	Username string
	Error    string
}

// handleSignInPage renders the sign-in form.
func (s *Server) handleSignInPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "signin.html", signInData{})
}

// handleSignIn checks the password and starts a session.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	username := r.FormValue("username")
	u, err := s.users.Authenticate(r.Context(), username, r.FormValue("password"))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		slog.WarnContext(r.Context(), "login failed", "username", username)
		s.renderStatus(w, http.StatusUnauthorized, "signin.html", signInData{Username: username, Error: "Invalid username or password"})
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "authenticating", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	s.startSession(w, r, u, "password")
}

// handleSignUpPage renders the registration form.
func (s *Server) handleSignUpPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, "signup.html", signInData{})
}

// handleSignUp registers an owner and signs them in.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	username := r.FormValue("username")
	if r.FormValue("password") != r.FormValue("confirm") {
		s.renderStatus(w, http.StatusBadRequest, "signup.html", signInData{Username: username, Error: "Passwords do not match"})
		return
	}

	u, err := s.users.Register(r.Context(), username, r.FormValue("password"))
	switch {
	case errors.Is(err, auth.ErrUserExists):
		s.renderStatus(w, http.StatusConflict, "signup.html", signInData{Username: username, Error: "That username is taken"})
		return
	case errors.Is(err, auth.ErrInvalidUser):
		s.renderStatus(w, http.StatusBadRequest, "signup.html", signInData{Username: username, Error: err.Error()})
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "registering", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "owner registered", "username", u.Username)
	s.startSession(w, r, u, "signup")
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, u *auth.User, method string) {
	if err := s.sessions.Create(w, u.ID); err != nil {
		slog.ErrorContext(r.Context(), "creating session", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	slog.InfoContext(r.Context(), "login success", "username", u.Username, "method", method)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSignOut destroys the session and redirects to sign in.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(w, r); err != nil {
		slog.ErrorContext(r.Context(), "destroying session", "err", err)
	}
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}
