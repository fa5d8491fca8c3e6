package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	pkgerrors "github.com/mosaikshop/storefront/pkg/errors"
	"github.com/mosaikshop/storefront/pkg/logger"
)

// ErrNotAuthenticated is returned by Do when no session token is held.
// Callers hitting this have a sequencing bug, not a runtime failure.
var ErrNotAuthenticated = pkgerrors.New(pkgerrors.CodeUnauthorized, "no active session")

// Profile is the upstream account profile.
type Profile struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Listener is notified after every guest/authenticated transition.
type Listener func(ctx context.Context, authenticated bool)

// Manager owns the upstream bearer token for the terminal session and is the
// single source of truth for the guest/authenticated mode the cart observes.
type Manager struct {
	baseURL string
	http    *http.Client
	logg    *logger.Logger

	mu        sync.RWMutex
	token     string
	email     string
	listeners []Listener
}

// NewManager builds a session manager against the upstream API base.
func NewManager(baseURL string, timeout time.Duration, logg *logger.Logger) (*Manager, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("upstream base url required")
	}
	return &Manager{
		baseURL: trimmed,
		http:    &http.Client{Timeout: timeout},
		logg:    logg,
	}, nil
}

// OnChange registers a listener for session transitions. Listeners run on the
// goroutine that triggered the transition, after the token state is committed.
func (m *Manager) OnChange(fn Listener) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Authenticated reports whether a usable session token is held. Tokens whose
// exp claim has passed count as logged out.
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()
	return token != "" && !tokenExpired(token, time.Now())
}

// Email returns the account email of the active session, if any.
func (m *Manager) Email() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.email
}

type credentialsPayload struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
	Name            string `json:"name,omitempty"`
}

type tokenResponse struct {
	Token   string `json:"token"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Login exchanges credentials for an upstream token and flips the session to
// authenticated mode.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	return m.obtainToken(ctx, "/auth/login", credentialsPayload{Email: email, Password: password})
}

// Register creates an upstream account and logs the session in.
func (m *Manager) Register(ctx context.Context, email, password, confirmPassword, name string) error {
	return m.obtainToken(ctx, "/auth/register", credentialsPayload{
		Email:           email,
		Password:        password,
		ConfirmPassword: confirmPassword,
		Name:            name,
	})
}

func (m *Manager) obtainToken(ctx context.Context, path string, payload credentialsPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build auth request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "reach auth endpoint")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var parsed tokenResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := parsed.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if msg == "" {
			msg = fmt.Sprintf("auth endpoint returned status %d", resp.StatusCode)
		}
		return pkgerrors.New(pkgerrors.CodeUnauthorized, msg)
	}
	if parsed.Token == "" {
		return pkgerrors.New(pkgerrors.CodeUpstream, "auth endpoint returned no token")
	}

	m.mu.Lock()
	m.token = parsed.Token
	m.email = parsed.Email
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	if m.logg != nil {
		m.logg.Info(ctx, "session authenticated")
	}
	for _, fn := range listeners {
		fn(ctx, true)
	}
	return nil
}

// Logout drops the token and flips the session back to guest mode.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	wasAuthenticated := m.token != ""
	m.token = ""
	m.email = ""
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	if !wasAuthenticated {
		return
	}
	if m.logg != nil {
		m.logg.Info(ctx, "session logged out")
	}
	for _, fn := range listeners {
		fn(ctx, false)
	}
}

// FetchProfile loads the account profile for the active session.
func (m *Manager) FetchProfile(ctx context.Context) (*Profile, error) {
	resp, err := m.Do(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, fmt.Sprintf("profile endpoint returned status %d", resp.StatusCode))
	}
	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decode profile")
	}
	return &profile, nil
}

// Do issues an authenticated request against the upstream API. It fails fast
// with ErrNotAuthenticated when no token is held.
func (m *Manager) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()

	if token == "" {
		return nil, ErrNotAuthenticated
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build authenticated request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "authenticated request")
	}
	return resp, nil
}

// tokenExpired inspects the exp claim without verifying the signature; the
// gateway never holds the upstream signing secret.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
