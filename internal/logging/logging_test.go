package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func captureLogs(t *testing.T, devMode bool) *bytes.Buffer {
	t.Helper()
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })

	var buf bytes.Buffer
	SetupWriter(&buf, devMode)
	return &buf
}

func TestSetupDevMode(t *testing.T) {
	buf := captureLogs(t, true)

	slog.Debug("test debug")
	slog.Info("test info")

	output := buf.String()
	if !strings.Contains(output, "test debug") {
		t.Error("expected debug message visible in dev mode")
	}
	if !strings.Contains(output, "test info") {
		t.Error("expected info message visible in dev mode")
	}
}

func TestSetupProdMode(t *testing.T) {
	buf := captureLogs(t, false)

	slog.Debug("hidden")
	slog.Info("prod test", "apartment", 3)

	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug message should be hidden in prod mode")
	}
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "prod test" || record["apartment"] != float64(3) {
		t.Errorf("record = %v", record)
	}
}

func TestRequestIDAttached(t *testing.T) {
	buf := captureLogs(t, true)

	slog.InfoContext(WithRequestID(context.Background(), "abc123"), "tagged")
	slog.With("component", "x").InfoContext(WithRequestID(context.Background(), "def456"), "derived")
	slog.Info("untagged")

	output := buf.String()
	if !strings.Contains(output, "request_id=abc123") {
		t.Errorf("expected request id in %q", output)
	}
	if !strings.Contains(output, "request_id=def456") {
		t.Errorf("expected request id through derived logger in %q", output)
	}
	if strings.Count(output, "request_id=") != 2 {
		t.Errorf("untagged record should carry no request id: %q", output)
	}
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequestLogger(t *testing.T) {
	buf := captureLogs(t, true)

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	})

	rec := serve(RequestLogger(inner), httptest.NewRequest("GET", "/api/calendars", nil))

	output := buf.String()
	if !strings.Contains(output, "GET") {
		t.Error("expected method in log")
	}
	if !strings.Contains(output, "/api/calendars") {
		t.Error("expected path in log")
	}
	if seen == "" || rec.Header().Get("X-Request-ID") != seen {
		t.Errorf("request id %q not echoed, header = %q", seen, rec.Header().Get("X-Request-ID"))
	}
	if !strings.Contains(output, "request_id="+seen) {
		t.Error("expected request id in log")
	}
}

func TestRequestLoggerKeepsClientID(t *testing.T) {
	captureLogs(t, true)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "client-id")
	rec := serve(RequestLogger(ok), req)

	if got := rec.Header().Get("X-Request-ID"); got != "client-id" {
		t.Errorf("request id = %q, want client-id", got)
	}
}

func TestRequestLoggerSkipsNoisyPaths(t *testing.T) {
	buf := captureLogs(t, true)

	for _, path := range []string{"/static/style.css", "/health"} {
		serve(RequestLogger(ok), httptest.NewRequest("GET", path, nil))
	}

	if buf.Len() > 0 {
		t.Errorf("expected no log for static or health paths, got %q", buf.String())
	}
}

func TestResponseWriterCapturesStatus(t *testing.T) {
	buf := captureLogs(t, true)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	serve(RequestLogger(inner), httptest.NewRequest("GET", "/missing", nil))

	if !strings.Contains(buf.String(), "404") || !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("expected 404 at warn level, got %q", buf.String())
	}
}
