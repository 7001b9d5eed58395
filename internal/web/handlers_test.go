package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestScheduleRequiresSession(t *testing.T) {
	srv, _ := testServer(t)

	w := serve(srv, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if loc := w.Header().Get("Location"); loc != "/signin" {
		t.Errorf("location = %q, want /signin", loc)
	}
}

func TestScheduleEmpty(t *testing.T) {
	srv, _ := testServer(t)
	registerOwner(t, srv, "alice")
	cookie := signIn(t, srv, "alice")

	w := serve(srv, httptest.NewRequest("GET", "/", nil), cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, "No apartments yet") {
		t.Error("expected empty state message")
	}
	if !strings.Contains(body, `action="/upload"`) {
		t.Error("expected upload form")
	}
	if !strings.Contains(body, "alice") {
		t.Error("expected signed-in username")
	}
}

func TestUploadAndGrid(t *testing.T) {
	srv, _ := testServer(t)
	registerOwner(t, srv, "alice")
	cookie := signIn(t, srv, "alice")

	w := serve(srv, uploadRequest(t, "/upload", "apartment_7.ics", testFeed), cookie)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("upload status = %d, want %d: %s", w.Code, http.StatusSeeOther, w.Body.String())
	}
	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, "/?message=") {
		t.Fatalf("location = %q", loc)
	}

	w = serve(srv, httptest.NewRequest("GET", loc, nil), cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("grid status = %d, want %d", w.Code, http.StatusOK)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Imported 2 bookings for apartment 7") {
		t.Error("expected import message")
	}
	if !strings.Contains(body, `class="status-checkout status-cleaning"`) {
		t.Error("expected checkout and cleaning cell")
	}
	if !strings.Contains(body, "Check-out / Cleaning") {
		t.Error("expected status labels")
	}
	if !strings.Contains(body, `href="/api/export/7"`) {
		t.Error("expected export link")
	}
	if !strings.Contains(body, `value="2024-09-02"`) || !strings.Contains(body, `value="2024-09-12"`) {
		t.Error("expected range inputs filled with schedule bounds")
	}
}

func TestScheduleRange(t *testing.T) {
	srv, _ := testServer(t)
	registerOwner(t, srv, "alice")
	cookie := signIn(t, srv, "alice")
	serve(srv, uploadRequest(t, "/upload", "apartment_1.ics", testFeed), cookie)

	w := serve(srv, httptest.NewRequest("GET", "/?from_date=2024-09-03&to_date=2024-09-04", nil), cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if n := strings.Count(w.Body.String(), `<th class="day">`); n != 2 {
		t.Errorf("got %d day columns, want 2", n)
	}

	w = serve(srv, httptest.NewRequest("GET", "/?from_date=tomorrow", nil), cookie)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad range status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if !strings.Contains(w.Body.String(), "from_date") {
		t.Error("expected range error on page")
	}
}

func TestUploadRejectsBadCalendar(t *testing.T) {
	srv, _ := testServer(t)
	registerOwner(t, srv, "alice")
	cookie := signIn(t, srv, "alice")

	w := serve(srv, uploadRequest(t, "/upload", "apartment_1.ics", invalidFeed), cookie)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if !strings.Contains(w.Body.String(), `class="error"`) {
		t.Error("expected error on page")
	}

	w = serve(srv, uploadRequest(t, "/upload", "bookings.ics", testFeed), cookie)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad filename status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAPIAcceptsSessionCookie(t *testing.T) {
	srv, _ := testServer(t)
	registerOwner(t, srv, "alice")
	cookie := signIn(t, srv, "alice")

	w := serve(srv, httptest.NewRequest("GET", "/api/calendars", nil), cookie)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
