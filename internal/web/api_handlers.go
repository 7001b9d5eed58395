package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/evcraddock/turnover/internal/apartment"
	"github.com/evcraddock/turnover/internal/auth"
	"github.com/evcraddock/turnover/internal/booking"
	"github.com/evcraddock/turnover/internal/calendar"
	"github.com/evcraddock/turnover/internal/dates"
	"github.com/evcraddock/turnover/internal/importer"
	"github.com/evcraddock/turnover/internal/schedule"
	"github.com/evcraddock/turnover/internal/subscription"
)

// maxUploadBytes bounds a multipart calendar upload.
const maxUploadBytes = 10 << 20

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// importStatus maps an import or sync failure to an HTTP status.
func importStatus(err error) int {
	var verr *booking.ValidationError
	var perr *calendar.ParseError
	var ferr *calendar.FetchError
	switch {
	case errors.As(err, &verr), errors.As(err, &perr):
		return http.StatusBadRequest
	case errors.As(err, &ferr):
		return http.StatusBadGateway
	case errors.Is(err, importer.ErrContention):
		return http.StatusServiceUnavailable
	case errors.Is(err, apartment.ErrNotFound), errors.Is(err, subscription.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func importFailed(w http.ResponseWriter, r *http.Request, err error) {
	code := importStatus(err)
	if code == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "import failed", "err", err)
		apiError(w, "import failed", code)
		return
	}
	apiError(w, err.Error(), code)
}

type importResponse struct {
	Apartment int   `json:"apartment"`
	Created   bool  `json:"created"`
	Bookings  int   `json:"bookings"`
	Replaced  int64 `json:"replaced"`
	Bundled   int   `json:"bundled"`
}

func newImportResponse(res *importer.Result) importResponse {
	return importResponse{
		Apartment: res.Apartment.Number,
		Created:   res.Created,
		Bookings:  len(res.Apartment.Bookings),
		Replaced:  res.Replaced,
		Bundled:   res.Bundled,
	}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// apiRegister creates an owner account.
func (s *Server) apiRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	u, err := s.users.Register(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		apiError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, auth.ErrInvalidUser):
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		apiError(w, fmt.Sprintf("registering: %v", err), http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "owner registered", "username", u.Username)
	apiJSON(w, u, http.StatusCreated)
}

// apiToken exchanges a username and password for a bearer token.
func (s *Server) apiToken(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	u, err := s.users.Authenticate(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		apiError(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err != nil {
		apiError(w, fmt.Sprintf("authenticating: %v", err), http.StatusInternalServerError)
		return
	}

	token, expires, err := s.tokens.Issue(u)
	if err != nil {
		apiError(w, fmt.Sprintf("issuing token: %v", err), http.StatusInternalServerError)
		return
	}

	apiJSON(w, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_at":   expires.UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// apiCalendars returns the owner's schedule grid, optionally bounded by
// from_date and to_date.
func (s *Server) apiCalendars(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	owner := auth.UserFromContext(r.Context())
	apartments, err := s.apartments.List(r.Context(), owner.ID)
	if err != nil {
		apiError(w, fmt.Sprintf("listing apartments: %v", err), http.StatusInternalServerError)
		return
	}

	apiJSON(w, schedule.Build(apartments, from, to), http.StatusOK)
}

// dateRange reads the optional from_date and to_date query parameters.
func dateRange(r *http.Request) (from, to *time.Time, err error) {
	q := r.URL.Query()
	return parseRange(q.Get("from_date"), q.Get("to_date"))
}

// parseRange parses optional YYYY-MM-DD bounds; empty means unbounded.
func parseRange(fromDate, toDate string) (from, to *time.Time, err error) {
	if fromDate != "" {
		d, err := dates.Parse(fromDate)
		if err != nil {
			return nil, nil, fmt.Errorf("from_date: %w", err)
		}
		from = &d
	}
	if toDate != "" {
		d, err := dates.Parse(toDate)
		if err != nil {
			return nil, nil, fmt.Errorf("to_date: %w", err)
		}
		to = &d
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, fmt.Errorf("to_date %s is before from_date %s", dates.Format(*to), dates.Format(*from))
	}
	return from, to, nil
}

// apiImportCalendar imports an uploaded apartment_<n>.ics file.
func (s *Server) apiImportCalendar(w http.ResponseWriter, r *http.Request) {
	cal, err := uploadedCalendar(w, r)
	if err != nil {
		importFailed(w, r, err)
		return
	}

	owner := auth.UserFromContext(r.Context())
	res, err := s.importer.ImportCalendar(r.Context(), owner.ID, cal)
	if err != nil {
		importFailed(w, r, err)
		return
	}

	apiJSON(w, newImportResponse(res), http.StatusOK)
}

// uploadedCalendar parses the multipart "file" field.
func uploadedCalendar(w http.ResponseWriter, r *http.Request) (*calendar.Calendar, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, &calendar.ParseError{Msg: "a calendar file is required in the \"file\" field", Err: err}
	}
	defer func() { _ = file.Close() }()

	return calendar.ParseFile(file, header.Filename)
}

// apiImportURL fetches and imports a remote calendar.
func (s *Server) apiImportURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		apiError(w, "url is required", http.StatusBadRequest)
		return
	}

	owner := auth.UserFromContext(r.Context())
	res, err := s.importer.ImportURL(r.Context(), owner.ID, strings.TrimSpace(req.URL), s.fetcher)
	if errors.Is(err, calendar.ErrNotModified) {
		apiJSON(w, map[string]string{"status": "not modified"}, http.StatusOK)
		return
	}
	if err != nil {
		importFailed(w, r, err)
		return
	}

	apiJSON(w, newImportResponse(res), http.StatusOK)
}

// apiExport downloads an apartment's bookings as an iCalendar file.
func (s *Server) apiExport(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number <= 0 {
		apiError(w, "invalid apartment number", http.StatusBadRequest)
		return
	}

	owner := auth.UserFromContext(r.Context())
	a, err := s.apartments.Get(r.Context(), owner.ID, number)
	if errors.Is(err, apartment.ErrNotFound) {
		apiError(w, "apartment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		apiError(w, fmt.Sprintf("loading apartment: %v", err), http.StatusInternalServerError)
		return
	}

	name, body := calendar.Export(a, time.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if _, err := w.Write(body); err != nil {
		slog.ErrorContext(r.Context(), "writing export", "err", err)
	}
}

func (s *Server) apiListSubscriptions(w http.ResponseWriter, r *http.Request) {
	owner := auth.UserFromContext(r.Context())
	subs, err := s.subscriptions.List(r.Context(), owner.ID)
	if err != nil {
		apiError(w, fmt.Sprintf("listing subscriptions: %v", err), http.StatusInternalServerError)
		return
	}

	if subs == nil {
		subs = make([]*subscription.Subscription, 0)
	}

	apiJSON(w, subs, http.StatusOK)
}

func (s *Server) apiAddSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	owner := auth.UserFromContext(r.Context())
	sub, err := s.subscriptions.Create(r.Context(), owner.ID, strings.TrimSpace(req.URL))
	var perr *calendar.ParseError
	switch {
	case errors.As(err, &perr):
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, subscription.ErrExists):
		apiError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		apiError(w, fmt.Sprintf("adding subscription: %v", err), http.StatusInternalServerError)
		return
	}

	apiJSON(w, sub, http.StatusCreated)
}

func (s *Server) apiDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	owner := auth.UserFromContext(r.Context())
	err := s.subscriptions.Delete(r.Context(), owner.ID, id)
	if errors.Is(err, subscription.ErrNotFound) {
		apiError(w, "subscription not found", http.StatusNotFound)
		return
	}
	if err != nil {
		apiError(w, fmt.Sprintf("deleting subscription: %v", err), http.StatusInternalServerError)
		return
	}
	apiJSON(w, map[string]any{"id": id, "removed": true}, http.StatusOK)
}

// apiSyncSubscription refreshes one subscription now.
func (s *Server) apiSyncSubscription(w http.ResponseWriter, r *http.Request) {
	owner := auth.UserFromContext(r.Context())
	sub, err := s.subscriptions.Get(r.Context(), owner.ID, r.PathValue("id"))
	if errors.Is(err, subscription.ErrNotFound) {
		apiError(w, "subscription not found", http.StatusNotFound)
		return
	}
	if err != nil {
		apiError(w, fmt.Sprintf("loading subscription: %v", err), http.StatusInternalServerError)
		return
	}

	outcome, err := s.syncer.Sync(r.Context(), sub)
	if err != nil {
		importFailed(w, r, err)
		return
	}

	apiJSON(w, map[string]any{"id": sub.ID, "outcome": outcome}, http.StatusOK)
}
