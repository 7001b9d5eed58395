package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPasskeyRegistrationRequiresSession(t *testing.T) {
	srv, _ := testServer(t)

	w := serve(srv, httptest.NewRequest("POST", "/passkey/register/begin", nil))
	if w.Code != http.StatusSeeOther {
		t.Errorf("status = %d, want redirect to sign in", w.Code)
	}
}

func TestPasskeyBeginRegistration(t *testing.T) {
	srv, _ := testServer(t)
	u, _ := registerOwner(t, srv, "alice")
	cookie := signIn(t, srv, "alice")

	w := serve(srv, httptest.NewRequest("POST", "/passkey/register/begin", nil), cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	opts := decode[map[string]map[string]any](t, w)
	pk := opts["publicKey"]
	if pk["challenge"] == nil {
		t.Fatalf("options = %v, want a challenge", opts)
	}
	user, _ := pk["user"].(map[string]any)
	if user["name"] != "alice" {
		t.Errorf("user = %v, want alice", user)
	}

	srv.webauthn.mu.Lock()
	_, pending := srv.webauthn.regSessions[u.ID]
	srv.webauthn.mu.Unlock()
	if !pending {
		t.Error("expected a registration ceremony keyed by owner id")
	}
}

func TestPasskeyFinishRegistrationWithoutBegin(t *testing.T) {
	srv, _ := testServer(t)
	registerOwner(t, srv, "alice")
	cookie := signIn(t, srv, "alice")

	w := serve(srv, httptest.NewRequest("POST", "/passkey/register/finish", strings.NewReader("{}")), cookie)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestPasskeyBeginLoginIsPublic(t *testing.T) {
	srv, _ := testServer(t)

	w := serve(srv, httptest.NewRequest("POST", "/passkey/login/begin", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if pk := decode[map[string]map[string]any](t, w)["publicKey"]; pk["challenge"] == nil {
		t.Error("expected a challenge")
	}

	var ceremony *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == loginCeremonyCookie {
			ceremony = c
		}
	}
	if ceremony == nil || ceremony.Value == "" {
		t.Fatal("expected a login ceremony cookie")
	}

	srv.webauthn.mu.Lock()
	_, pending := srv.webauthn.loginSessions[ceremony.Value]
	srv.webauthn.mu.Unlock()
	if !pending {
		t.Error("expected the ceremony to be pending")
	}
}

func TestPasskeyFinishLoginWithoutCeremony(t *testing.T) {
	srv, _ := testServer(t)

	w := serve(srv, httptest.NewRequest("POST", "/passkey/login/finish", strings.NewReader("{}")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("no cookie status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	r := httptest.NewRequest("POST", "/passkey/login/finish", strings.NewReader("{}"))
	r.AddCookie(&http.Cookie{Name: loginCeremonyCookie, Value: "unknown"})
	if w := serve(srv, r); w.Code != http.StatusBadRequest {
		t.Errorf("unknown ceremony status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestPasskeyFinishLoginRejectsGarbage(t *testing.T) {
	srv, _ := testServer(t)

	begin := serve(srv, httptest.NewRequest("POST", "/passkey/login/begin", nil))
	r := httptest.NewRequest("POST", "/passkey/login/finish", strings.NewReader(`{"id":"x"}`))
	for _, c := range begin.Result().Cookies() {
		r.AddCookie(c)
	}

	w := serve(srv, r)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
