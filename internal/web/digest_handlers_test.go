package web

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

type fakeMailer struct {
	to      []string
	subject string
	body    string
	err     error
}

func (m *fakeMailer) Send(to []string, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

func importFeed(t *testing.T, srv *Server, token string) {
	t.Helper()
	r := uploadRequest(t, "/api/import-calendar", "apartment_1.ics", testFeed)
	r.Header.Set("Authorization", "Bearer "+token)
	if w := serve(srv, r); w.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", w.Code, w.Body.String())
	}
}

func TestDigestDryRun(t *testing.T) {
	srv, token := testAPIServer(t)
	importFeed(t, srv, token)

	w := apiRequest(t, srv, "POST", "/api/digest", token, map[string]any{
		"from_date": "2024-09-05",
		"to_date":   "2024-09-10",
		"dry_run":   true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	resp := decode[digestResponse](t, w)
	if resp.Sent {
		t.Error("dry run should not send")
	}
	if resp.Subject != "Cleaning schedule 2024-09-05 to 2024-09-10" {
		t.Errorf("subject = %q", resp.Subject)
	}
	if !strings.Contains(resp.Body, "Fri Sep 6\n   Cleaning: apartment 1\n   Check-out: apartment 1\n") {
		t.Errorf("body = %q", resp.Body)
	}
	if !strings.Contains(resp.Body, "Check-in: apartment 1") {
		t.Error("expected the Sep 10 check-in")
	}
}

func TestDigestSends(t *testing.T) {
	srv, token := testAPIServer(t)
	importFeed(t, srv, token)
	mailer := &fakeMailer{}
	srv.mailer = mailer

	w := apiRequest(t, srv, "POST", "/api/digest", token, map[string]any{
		"to": []string{" crew@example.com "},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !decode[digestResponse](t, w).Sent {
		t.Error("expected sent")
	}
	if len(mailer.to) != 1 || mailer.to[0] != "crew@example.com" {
		t.Errorf("to = %v", mailer.to)
	}
	if !strings.Contains(mailer.body, "Cleaning: apartment 1") {
		t.Errorf("body = %q", mailer.body)
	}
}

func TestDigestErrors(t *testing.T) {
	srv, token := testAPIServer(t)

	tests := []struct {
		name   string
		mailer *fakeMailer
		body   map[string]any
		code   int
	}{
		{"no recipients", &fakeMailer{}, map[string]any{}, http.StatusBadRequest},
		{"bad recipient", &fakeMailer{}, map[string]any{"to": []string{"not an address"}}, http.StatusBadRequest},
		{"bad range", &fakeMailer{}, map[string]any{"to": []string{"a@example.com"}, "from_date": "2024-09-10", "to_date": "2024-09-01"}, http.StatusBadRequest},
		{"not configured", nil, map[string]any{"to": []string{"a@example.com"}}, http.StatusServiceUnavailable},
		{"smtp failure", &fakeMailer{err: errors.New("connection refused")}, map[string]any{"to": []string{"a@example.com"}}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv.mailer = nil
			if tt.mailer != nil {
				srv.mailer = tt.mailer
			}
			w := apiRequest(t, srv, "POST", "/api/digest", token, tt.body)
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.code, w.Body.String())
			}
		})
	}
}
