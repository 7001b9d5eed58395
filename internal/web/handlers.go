package web

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/evcraddock/turnover/internal/auth"
	"github.com/evcraddock/turnover/internal/dates"
	"github.com/evcraddock/turnover/internal/schedule"
)

type scheduleData struct {
	User     *auth.User
	Schedule schedule.Schedule
	Days     []time.Time
	From     string
	To       string
	Message  string
	Error    string
	Passkeys int
}

// handleSchedule renders the owner's cleaning grid.
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	data, err := s.scheduleData(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "loading schedule", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if data.Error != "" {
		s.renderStatus(w, http.StatusBadRequest, "schedule.html", data)
		return
	}
	data.Message = r.URL.Query().Get("message")
	s.render(w, "schedule.html", data)
}

// scheduleData loads the grid for the signed-in owner. A bad date range
// leaves the grid unbounded and sets Error.
func (s *Server) scheduleData(r *http.Request) (scheduleData, error) {
	owner := auth.UserFromContext(r.Context())
	data := scheduleData{
		User: owner,
		From: r.URL.Query().Get("from_date"),
		To:   r.URL.Query().Get("to_date"),
	}

	from, to, rangeErr := dateRange(r)
	if rangeErr != nil {
		data.Error = rangeErr.Error()
	}

	apartments, err := s.apartments.List(r.Context(), owner.ID)
	if err != nil {
		return data, fmt.Errorf("listing apartments: %w", err)
	}
	creds, err := s.passkeys.ListByUser(r.Context(), owner.ID)
	if err != nil {
		return data, fmt.Errorf("listing passkeys: %w", err)
	}

	data.Schedule = schedule.Build(apartments, from, to)
	data.Days = data.Schedule.Days()
	data.Passkeys = len(creds)
	if data.Schedule.Start != nil && data.From == "" {
		data.From = dates.Format(*data.Schedule.Start)
	}
	if data.Schedule.End != nil && data.To == "" {
		data.To = dates.Format(*data.Schedule.End)
	}
	return data, nil
}

// handleUpload imports a calendar file from the grid page form.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	owner := auth.UserFromContext(r.Context())

	fail := func(err error) {
		data, loadErr := s.scheduleData(r)
		if loadErr != nil {
			slog.ErrorContext(r.Context(), "loading schedule", "err", loadErr)
		}
		data.Error = err.Error()
		s.renderStatus(w, importStatus(err), "schedule.html", data)
	}

	cal, err := uploadedCalendar(w, r)
	if err != nil {
		fail(err)
		return
	}
	res, err := s.importer.ImportCalendar(r.Context(), owner.ID, cal)
	if err != nil {
		if importStatus(err) == http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "import failed", "err", err)
			err = errors.New("import failed")
		}
		fail(err)
		return
	}

	msg := fmt.Sprintf("Imported %d bookings for apartment %d", len(res.Apartment.Bookings), res.Apartment.Number)
	http.Redirect(w, r, "/?message="+url.QueryEscape(msg), http.StatusSeeOther)
}

// render executes a template with status 200.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	s.renderStatus(w, http.StatusOK, name, data)
}

// renderStatus executes a template into a buffer so a failed render can
// still report a 500.
func (s *Server) renderStatus(w http.ResponseWriter, code int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		http.Error(w, fmt.Sprintf("Error rendering template: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("writing response", "err", err)
	}
}
