package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// apiServer fakes the turnover API for the data commands.
func apiServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/import-calendar", func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		if err != nil || header.Filename != "apartment_4.ics" {
			http.Error(w, `{"error":"bad upload"}`, http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"apartment":4,"created":true,"bookings":2}`)
	})
	mux.HandleFunc("POST /api/import-url", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"not modified"}`)
	})
	mux.HandleFunc("GET /api/calendars", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"calendars":[{"number":4,"schedule":{"2024-09-06":["checkout","cleaning"]}}],"start_date":"2024-09-06","end_date":"2024-09-06"}`)
	})
	mux.HandleFunc("GET /api/export/{number}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("number") != "4" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"apartment not found"}`)
			return
		}
		_, _ = io.WriteString(w, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	})
	mux.HandleFunc("GET /api/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":"s1","url":"http://example.com/apartment_4.ics","apartment_number":4}]`)
	})
	mux.HandleFunc("POST /api/subscriptions/{id}/sync", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"s1","outcome":"unchanged"}`)
	})

	mux.HandleFunc("POST /api/digest", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		sent := req["dry_run"] != true
		_ = json.NewEncoder(w).Encode(map[string]any{
			"to":      req["to"],
			"subject": "Cleaning schedule 2024-09-06 to 2024-09-06",
			"body":    "Fri Sep 6\n   Cleaning: apartment 4\n",
			"sent":    sent,
		})
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer clitoken" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"unauthorized"}`)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	t.Setenv("HOME", t.TempDir())
	t.Setenv("TURNOVER_SERVER_URL", srv.URL)
	t.Setenv("TURNOVER_TOKEN", "clitoken")
	return srv
}

func TestImportFileCommand(t *testing.T) {
	apiServer(t)
	path := filepath.Join(t.TempDir(), "apartment_4.ics")
	if err := os.WriteFile(path, []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := executeCommand("import", path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "Created apartment 4 with 2 bookings.") {
		t.Errorf("output = %q", out)
	}

	if _, err := executeCommand("import", filepath.Join(t.TempDir(), "missing.ics")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestImportURLCommand(t *testing.T) {
	apiServer(t)

	out, err := executeCommand("import", "--url", "http://example.com/apartment_4.ics")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "not modified") {
		t.Errorf("output = %q", out)
	}
}

func TestScheduleCommand(t *testing.T) {
	apiServer(t)

	out, err := executeCommand("schedule", "--from", "2024-09-06", "--to", "2024-09-06")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if !strings.Contains(out, "APT 4") || !strings.Contains(out, "Check-out/Cleaning") {
		t.Errorf("output = %q", out)
	}
}

func TestExportCommand(t *testing.T) {
	apiServer(t)

	out, err := executeCommand("export", "4")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(out, "BEGIN:VCALENDAR") {
		t.Errorf("output = %q", out)
	}

	path := filepath.Join(t.TempDir(), "out.ics")
	if _, err := executeCommand("export", "4", "-o", path); err != nil {
		t.Fatalf("export to file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), "END:VCALENDAR") {
		t.Errorf("file = %q, %v", data, err)
	}

	_, err = executeCommand("export", "9")
	if err == nil || !strings.Contains(err.Error(), "apartment not found") {
		t.Errorf("err = %v, want apartment not found", err)
	}
}

func TestSubscriptionCommands(t *testing.T) {
	apiServer(t)

	out, err := executeCommand("subscription", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "s1") || !strings.Contains(out, "Total: 1 subscriptions") {
		t.Errorf("list output = %q", out)
	}

	out, err = executeCommand("sub", "sync", "s1")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !strings.Contains(out, "unchanged") {
		t.Errorf("sync output = %q", out)
	}
}

func TestDataCommandsRequireToken(t *testing.T) {
	apiServer(t)
	t.Setenv("TURNOVER_TOKEN", "")

	_, err := executeCommand("schedule")
	if err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("err = %v, want unauthorized", err)
	}
}

func TestEmailCommand(t *testing.T) {
	apiServer(t)

	out, err := executeCommand("email", "--dry-run", "crew@example.com")
	if err != nil {
		t.Fatalf("email dry run: %v", err)
	}
	for _, want := range []string{"To: crew@example.com", "Subject: Cleaning schedule", "Cleaning: apartment 4"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}

	out, err = executeCommand("email", "crew@example.com", "owner@example.com")
	if err != nil {
		t.Fatalf("email: %v", err)
	}
	if !strings.Contains(out, "Email sent to crew@example.com, owner@example.com") {
		t.Errorf("output = %q", out)
	}
}
