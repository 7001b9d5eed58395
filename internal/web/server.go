// Package web provides the HTTP server for the turnover UI and JSON API.
package web

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/evcraddock/turnover/internal/apartment"
	"github.com/evcraddock/turnover/internal/auth"
	"github.com/evcraddock/turnover/internal/calendar"
	"github.com/evcraddock/turnover/internal/dates"
	"github.com/evcraddock/turnover/internal/email"
	"github.com/evcraddock/turnover/internal/importer"
	"github.com/evcraddock/turnover/internal/logging"
	"github.com/evcraddock/turnover/internal/subscription"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	BaseURL        string
	DevMode        bool
	TokenSecret    []byte
	TokenTTL       time.Duration
	CookieHashKey  []byte
	CookieBlockKey []byte

	// Fetcher downloads remote calendars. Defaults to calendar.NewFetcher
	// with FetchTimeout.
	Fetcher      importer.Fetcher
	FetchTimeout time.Duration

	// Mailer sends cleaning digests. Nil disables sending; dry runs still
	// work.
	Mailer email.Sender
}

// Server is the turnover HTTP server.
type Server struct {
	apartments    *apartment.Repository
	subscriptions *subscription.Repository
	importer      *importer.Service
	syncer        *subscription.Syncer
	fetcher       importer.Fetcher
	mailer        email.Sender
	baseURL       string

	users    *auth.UserStore
	sessions *auth.SessionStore
	tokens   *auth.TokenIssuer
	passkeys *auth.PasskeyStore
	webauthn *passkeyHandlers

	templates *template.Template
	mux       *http.ServeMux
	handler   http.Handler
}

// NewServer creates a web server with the given database.
func NewServer(db *sql.DB, opts Options) (*Server, error) {
	funcMap := template.FuncMap{
		"formatDate":  dates.Format,
		"dayLabel":    tmplDayLabel,
		"statusClass": tmplStatusClass,
		"statusText":  tmplStatusText,
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = calendar.NewFetcher(opts.FetchTimeout)
	}

	s := &Server{
		apartments:    apartment.NewRepository(db),
		subscriptions: subscription.NewRepository(db),
		importer:      importer.NewService(db),
		fetcher:       fetcher,
		mailer:        opts.Mailer,
		baseURL:       opts.BaseURL,
		users:         auth.NewUserStore(db),
		sessions:      auth.NewSessionStore(db, opts.CookieHashKey, opts.CookieBlockKey, !opts.DevMode),
		tokens:        auth.NewTokenIssuer(opts.TokenSecret, opts.TokenTTL),
		passkeys:      auth.NewPasskeyStore(db),
		templates:     tmpl,
		mux:           http.NewServeMux(),
	}
	s.syncer = subscription.NewSyncer(s.subscriptions, s.importer, fetcher)

	s.webauthn, err = newPasskeyHandlers(opts.BaseURL, s.passkeys, s.sessions, s.users)
	if err != nil {
		return nil, fmt.Errorf("configuring passkeys: %w", err)
	}

	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("creating static sub-fs: %w", err)
	}

	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticContent))))
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// UI
	s.mux.HandleFunc("GET /{$}", s.handleSchedule)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("GET /signin", s.handleSignInPage)
	s.mux.HandleFunc("POST /signin", s.handleSignIn)
	s.mux.HandleFunc("GET /signup", s.handleSignUpPage)
	s.mux.HandleFunc("POST /signup", s.handleSignUp)
	s.mux.HandleFunc("POST /signout", s.handleSignOut)

	// Passkeys
	s.mux.HandleFunc("POST /passkey/register/begin", s.webauthn.handleBeginRegistration)
	s.mux.HandleFunc("POST /passkey/register/finish", s.webauthn.handleFinishRegistration)
	s.mux.HandleFunc("POST /passkey/login/begin", s.webauthn.handleBeginLogin)
	s.mux.HandleFunc("POST /passkey/login/finish", s.webauthn.handleFinishLogin)

	// API
	s.mux.HandleFunc("POST /api/register", s.apiRegister)
	s.mux.HandleFunc("POST /api/token", s.apiToken)
	s.mux.HandleFunc("GET /api/calendars", s.apiCalendars)
	s.mux.HandleFunc("POST /api/import-calendar", s.apiImportCalendar)
	s.mux.HandleFunc("POST /api/import-url", s.apiImportURL)
	s.mux.HandleFunc("GET /api/export/{number}", s.apiExport)
	s.mux.HandleFunc("GET /api/subscriptions", s.apiListSubscriptions)
	s.mux.HandleFunc("POST /api/subscriptions", s.apiAddSubscription)
	s.mux.HandleFunc("DELETE /api/subscriptions/{id}", s.apiDeleteSubscription)
	s.mux.HandleFunc("POST /api/subscriptions/{id}/sync", s.apiSyncSubscription)
	s.mux.HandleFunc("POST /api/digest", s.apiDigest)

	s.handler = logging.RequestLogger(
		auth.RequireAuth(s.sessions, s.users,
			auth.RequireAPIAuth(s.tokens, s.sessions, s.users, s.mux)))

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Syncer returns the subscription syncer shared with the API.
func (s *Server) Syncer() *subscription.Syncer {
	return s.syncer
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting web server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("web server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	apiJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// Template helper functions

func tmplDayLabel(t time.Time) string {
	return t.Format("Mon Jan 2")
}

func tmplStatusClass(statuses []apartment.Status) string {
	classes := make([]string, len(statuses))
	for i, st := range statuses {
		classes[i] = "status-" + string(st)
	}
	return strings.Join(classes, " ")
}

func tmplStatusText(statuses []apartment.Status) string {
	labels := make([]string, len(statuses))
	for i, st := range statuses {
		labels[i] = st.Label()
	}
	return strings.Join(labels, " / ")
}
