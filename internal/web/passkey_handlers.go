package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/evcraddock/turnover/internal/auth"
)

const (
	loginCeremonyCookie = "turnover_passkey_login"
	ceremonyTimeout     = 5 * time.Minute
)

// passkeyHandlers holds WebAuthn-related HTTP handlers.
type passkeyHandlers struct {
	wan      *webauthn.WebAuthn
	passkeys *auth.PasskeyStore
	sessions *auth.SessionStore
	users    *auth.UserStore

	// In-flight ceremonies. regSessions is keyed by user ID; loginSessions
	// by a random ID carried in a short-lived cookie.
	mu            sync.Mutex
	regSessions   map[string]*webauthn.SessionData
	loginSessions map[string]*webauthn.SessionData
}

func newPasskeyHandlers(baseURL string, passkeys *auth.PasskeyStore, sessions *auth.SessionStore, users *auth.UserStore) (*passkeyHandlers, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	wan, err := webauthn.New(&webauthn.Config{
		RPDisplayName: "Turnover",
		RPID:          parsed.Hostname(),
		RPOrigins:     []string{strings.TrimSuffix(baseURL, "/")},
	})
	if err != nil {
		return nil, err
	}

	return &passkeyHandlers{
		wan:           wan,
		passkeys:      passkeys,
		sessions:      sessions,
		users:         users,
		regSessions:   make(map[string]*webauthn.SessionData),
		loginSessions: make(map[string]*webauthn.SessionData),
	}, nil
}

// passkeyUser loads the signed-in owner with their credentials.
func (h *passkeyHandlers) passkeyUser(r *http.Request) (*auth.PasskeyUser, error) {
	u := auth.UserFromContext(r.Context())
	if u == nil {
		return nil, auth.ErrNoSession
	}
	creds, err := h.passkeys.WebAuthnCredentials(r.Context(), u.ID)
	if err != nil {
		return nil, err
	}
	return auth.NewPasskeyUser(u, creds), nil
}

// handleBeginRegistration starts passkey registration for the signed-in owner.
func (h *passkeyHandlers) handleBeginRegistration(w http.ResponseWriter, r *http.Request) {
	user, err := h.passkeyUser(r)
	if err != nil {
		writePasskeyError(w, r, err)
		return
	}

	creds := user.WebAuthnCredentials()
	excludeList := make([]protocol.CredentialDescriptor, len(creds))
	for i, c := range creds {
		excludeList[i] = c.Descriptor()
	}

	creation, session, err := h.wan.BeginRegistration(user,
		webauthn.WithExclusions(excludeList),
	)
	if err != nil {
		slog.ErrorContext(r.Context(), "beginning registration", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	h.regSessions[user.User().ID] = session
	h.mu.Unlock()

	writePasskeyJSON(w, r, creation)
}

// handleFinishRegistration completes passkey registration.
func (h *passkeyHandlers) handleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	user, err := h.passkeyUser(r)
	if err != nil {
		writePasskeyError(w, r, err)
		return
	}

	h.mu.Lock()
	session, ok := h.regSessions[user.User().ID]
	delete(h.regSessions, user.User().ID)
	h.mu.Unlock()

	if !ok {
		http.Error(w, "No registration in progress", http.StatusBadRequest)
		return
	}

	credential, err := h.wan.FinishRegistration(user, *session, r)
	if err != nil {
		slog.WarnContext(r.Context(), "finishing registration", "err", err)
		http.Error(w, "Registration failed", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = "Passkey"
	}

	if err := h.passkeys.Save(r.Context(), user.User().ID, name, credential); err != nil {
		slog.ErrorContext(r.Context(), "saving credential", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "passkey registered", "username", user.User().Username, "name", name)
	writePasskeyJSON(w, r, map[string]string{"status": "ok"})
}

// handleBeginLogin starts a discoverable passkey login.
func (h *passkeyHandlers) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	assertion, session, err := h.wan.BeginDiscoverableLogin()
	if err != nil {
		slog.ErrorContext(r.Context(), "beginning passkey login", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	id, err := ceremonyID()
	if err != nil {
		slog.ErrorContext(r.Context(), "generating ceremony id", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	now := time.Now()
	for key, pending := range h.loginSessions {
		if !pending.Expires.IsZero() && now.After(pending.Expires) {
			delete(h.loginSessions, key)
		}
	}
	h.loginSessions[id] = session
	h.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     loginCeremonyCookie,
		Value:    id,
		Path:     "/passkey/login/",
		MaxAge:   int(ceremonyTimeout / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writePasskeyJSON(w, r, assertion)
}

// handleFinishLogin completes passkey login and creates a session.
func (h *passkeyHandlers) handleFinishLogin(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(loginCeremonyCookie)
	if err != nil {
		http.Error(w, "No login in progress", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	session, ok := h.loginSessions[cookie.Value]
	delete(h.loginSessions, cookie.Value)
	h.mu.Unlock()

	if !ok {
		http.Error(w, "No login in progress", http.StatusBadRequest)
		return
	}

	// userHandle is the owner ID set as WebAuthnID at registration.
	handler := func(rawID, userHandle []byte) (webauthn.User, error) {
		u, err := h.users.GetByID(r.Context(), string(userHandle))
		if err != nil {
			return nil, protocol.ErrBadRequest.WithDetails("unknown user")
		}
		creds, err := h.passkeys.WebAuthnCredentials(r.Context(), u.ID)
		if err != nil {
			return nil, err
		}
		return auth.NewPasskeyUser(u, creds), nil
	}

	found, credential, err := h.wan.FinishPasskeyLogin(handler, *session, r)
	if err != nil {
		slog.WarnContext(r.Context(), "finishing passkey login", "err", err)
		http.Error(w, "Login failed", http.StatusUnauthorized)
		return
	}

	user, ok := found.(*auth.PasskeyUser)
	if !ok {
		http.Error(w, "Login failed", http.StatusUnauthorized)
		return
	}
	if err := h.passkeys.Update(r.Context(), user.User().ID, credential); err != nil {
		slog.ErrorContext(r.Context(), "updating credential", "err", err)
	}

	if err := h.sessions.Create(w, user.User().ID); err != nil {
		slog.ErrorContext(r.Context(), "creating session", "err", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "login success", "username", user.User().Username, "method", "passkey")
	writePasskeyJSON(w, r, map[string]string{"status": "ok"})
}

func ceremonyID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func writePasskeyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrNoSession) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	slog.ErrorContext(r.Context(), "loading credentials", "err", err)
	http.Error(w, "Internal error", http.StatusInternalServerError)
}

func writePasskeyJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "encoding response", "err", err)
	}
}
