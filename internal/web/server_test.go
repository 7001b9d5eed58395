package web

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evcraddock/turnover/internal/auth"
	"github.com/evcraddock/turnover/internal/db"
)

const testPassword = "correct horse"

const testFeed = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:second\r\nDTSTART;VALUE=DATE:20240910\r\nDTEND;VALUE=DATE:20240912\r\nSUMMARY:Smith\r\nEND:VEVENT\r\n" +
	"BEGIN:VEVENT\r\nUID:first\r\nDTSTART;VALUE=DATE:20240902\r\nDTEND;VALUE=DATE:20240906\r\nSUMMARY:Jones\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

const invalidFeed = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:bad\r\nDTSTART;VALUE=DATE:20240906\r\nDTEND;VALUE=DATE:20240902\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

// testServer creates a server on a fresh database.
func testServer(t *testing.T) (*Server, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := db.Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if cerr := d.Close(); cerr != nil {
			t.Errorf("close db: %v", cerr)
		}
	})

	srv, err := NewServer(d, Options{
		BaseURL:      "http://localhost:8080",
		DevMode:      true,
		TokenSecret:  []byte("test-secret"),
		TokenTTL:     time.Hour,
		FetchTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, d
}

// testAPIServer creates a server with one owner and returns a bearer token
// for them.
func testAPIServer(t *testing.T) (*Server, string) {
	t.Helper()
	srv, _ := testServer(t)
	_, token := registerOwner(t, srv, "alice")
	return srv, token
}

func registerOwner(t *testing.T, srv *Server, username string) (*auth.User, string) {
	t.Helper()
	u, err := srv.users.Register(context.Background(), username, testPassword)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	token, _, err := srv.tokens.Issue(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return u, token
}

func apiRequest(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	reqBody := &bytes.Buffer{}
	if body != nil {
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}

	r := httptest.NewRequest(method, path, reqBody)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

// uploadRequest builds a multipart request carrying content as the "file"
// field.
func uploadRequest(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	r := httptest.NewRequest("POST", path, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func formRequest(path string, form url.Values) *http.Request {
	r := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

// signIn posts the sign-in form and returns the session cookie.
func signIn(t *testing.T, srv *Server, username string) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, formRequest("/signin", url.Values{"username": {username}, "password": {testPassword}}))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("sign in status = %d, want %d: %s", w.Code, http.StatusSeeOther, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == "turnover_session" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func serve(srv *Server, r *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)

	w := serve(srv, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := decode[map[string]string](t, w); got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}
}

func TestStaticFilesArePublic(t *testing.T) {
	srv, _ := testServer(t)

	w := serve(srv, httptest.NewRequest("GET", "/static/style.css", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), ".status-cleaning") {
		t.Error("expected stylesheet content")
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv, token := testAPIServer(t)

	w := apiRequest(t, srv, "GET", "/api/calendars", token, nil)
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID on response")
	}
}
