package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/evcraddock/turnover/internal/auth"
	"github.com/evcraddock/turnover/internal/email"
	"github.com/evcraddock/turnover/internal/schedule"
)

type digestRequest struct {
	To       []string `json:"to"`
	FromDate string   `json:"from_date"`
	ToDate   string   `json:"to_date"`
	DryRun   bool     `json:"dry_run"`
}

type digestResponse struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Sent    bool     `json:"sent"`
}

// apiDigest emails the owner's cleaning schedule to the given recipients,
// or only renders it on a dry run.
func (s *Server) apiDigest(w http.ResponseWriter, r *http.Request) {
	var req digestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	to := make([]string, 0, len(req.To))
	for _, addr := range req.To {
		addr = strings.TrimSpace(addr)
		if _, err := mail.ParseAddress(addr); err != nil {
			apiError(w, "invalid recipient: "+addr, http.StatusBadRequest)
			return
		}
		to = append(to, addr)
	}
	if len(to) == 0 && !req.DryRun {
		apiError(w, "at least one recipient is required", http.StatusBadRequest)
		return
	}

	from, until, err := parseRange(req.FromDate, req.ToDate)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	owner := auth.UserFromContext(r.Context())
	apartments, err := s.apartments.List(r.Context(), owner.ID)
	if err != nil {
		apiError(w, "listing apartments failed", http.StatusInternalServerError)
		return
	}

	sched := schedule.Build(apartments, from, until)
	resp := digestResponse{
		To:      to,
		Subject: email.Subject(sched),
		Body:    email.FormatDigest(sched, s.baseURL),
	}

	if req.DryRun {
		apiJSON(w, resp, http.StatusOK)
		return
	}
	if s.mailer == nil {
		apiError(w, "email is not configured", http.StatusServiceUnavailable)
		return
	}
	if err := s.mailer.Send(to, resp.Subject, resp.Body); err != nil {
		slog.ErrorContext(r.Context(), "sending digest failed", "err", err, "recipients", len(to))
		apiError(w, "sending email failed", http.StatusBadGateway)
		return
	}

	slog.InfoContext(r.Context(), "digest sent", "recipients", len(to))
	resp.Sent = true
	apiJSON(w, resp, http.StatusOK)
}
