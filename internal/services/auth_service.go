package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"adsdash/internal/logger"
	"adsdash/internal/storage"
	"adsdash/pkg/adtypes"
)

// AuthService owns the session: it logs in, restores a stored session, wraps outbound
// requests with the bearer token and logs out on any 401.
type AuthService struct {
	mu          sync.RWMutex
	initialized bool
	baseURL     string
	client      *http.Client
	store       storage.Store
	session     adtypes.Session
	// logoutTimeout bounds the backend logout notification.
	logoutTimeout time.Duration
}

const defaultLogoutTimeout = 5 * time.Second

// TokenClaims is what whoami shows from the stored token. The token is decoded without
// verification; the backend remains the only judge of its validity.
type TokenClaims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// NewAuthService creates an AuthService talking to baseURL. A nil client uses a client
// without timeout, which streaming responses need.
func NewAuthService(baseURL string, client *http.Client, store storage.Store) *AuthService {
	if client == nil {
		client = &http.Client{}
	}
	return &AuthService{baseURL: baseURL, client: client, store: store, logoutTimeout: defaultLogoutTimeout}
}

// Name returns the service name "auth" for registration.
func (a *AuthService) Name() string {
	return "auth"
}

// Initialize restores a stored session. Both the token and a valid user record must be
// present; anything else starts logged out.
func (a *AuthService) Initialize() error {
	if a.initialized {
		return nil
	}

	token, ok, err := a.store.Get(storage.KeyAuthToken)
	if err != nil {
		return fmt.Errorf("failed to read stored token: %w", err)
	}
	var user adtypes.User
	userOK, err := storage.GetJSON(a.store, storage.KeyAuthUser, &user)
	if err != nil {
		return fmt.Errorf("failed to read stored user: %w", err)
	}

	a.mu.Lock()
	if ok && token != "" && userOK {
		a.session = adtypes.Session{Token: token, User: &user}
		logger.Debug("Session restored", "username", user.Username)
	}
	a.initialized = true
	a.mu.Unlock()
	return nil
}

// BaseURL returns the backend base URL.
func (a *AuthService) BaseURL() string {
	return a.baseURL
}

// Session returns a copy of the current session.
func (a *AuthService) Session() adtypes.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.session
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Login posts the credentials and stores the session on success. Failures are reported
// in the result, never as an error.
func (a *AuthService) Login(ctx context.Context, username, password string) adtypes.LoginResult {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return adtypes.LoginResult{Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/login", bytes.NewReader(body))
	if err != nil {
		return adtypes.LoginResult{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		logger.Error("Login request failed", "error", err)
		return adtypes.LoginResult{Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()
	logger.Request(http.MethodPost, "/api/login", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := jsonDetail(raw)
		if msg == "" {
			msg = "Login failed"
		}
		return adtypes.LoginResult{Message: msg}
	}

	var data adtypes.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return adtypes.LoginResult{Message: fmt.Sprintf("invalid login response: %v", err)}
	}

	user := adtypes.User{Username: data.Username, Role: data.Role}
	// The session is held in memory only once it is stored.
	if err := a.storeSession(data.AccessToken, user); err != nil {
		logger.Error("Failed to store session", "error", err)
		a.mu.Lock()
		a.session = adtypes.Session{}
		a.mu.Unlock()
		a.clearStored()
		return adtypes.LoginResult{Message: fmt.Sprintf("failed to store session: %v", err)}
	}
	a.mu.Lock()
	a.session = adtypes.Session{Token: data.AccessToken, User: &user}
	a.mu.Unlock()

	logger.Info("Logged in", "username", user.Username, "role", user.Role)
	return adtypes.LoginResult{Success: true}
}

func (a *AuthService) storeSession(token string, user adtypes.User) error {
	if err := a.store.Set(storage.KeyAuthToken, token); err != nil {
		return err
	}
	return storage.SetJSON(a.store, storage.KeyAuthUser, user)
}

// Logout notifies the backend when a token is held, ignoring any failure, and always
// clears the session from memory and storage.
func (a *AuthService) Logout(ctx context.Context) {
	a.mu.Lock()
	token := a.session.Token
	a.session = adtypes.Session{}
	a.mu.Unlock()

	if token != "" {
		a.notifyLogout(ctx, token)
	}
	a.clearStored()
}

// notifyLogout is best effort: it is bounded by logoutTimeout and outlives a cancelled ctx.
func (a *AuthService) notifyLogout(ctx context.Context, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.logoutTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/logout", nil)
	if err != nil {
		logger.Error("Logout error", "error", err)
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		logger.Error("Logout error", "error", err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	logger.Request(http.MethodPost, "/api/logout", resp.StatusCode)
}

func (a *AuthService) clearStored() {
	if err := a.store.Remove(storage.KeyAuthToken); err != nil {
		logger.Error("Failed to clear stored token", "error", err)
	}
	if err := a.store.Remove(storage.KeyAuthUser); err != nil {
		logger.Error("Failed to clear stored user", "error", err)
	}
}

// Fetch sends an authenticated request to path. A 401 clears the session and returns
// ErrSessionExpired; any other status is returned to the caller with the body open.
func (a *AuthService) Fetch(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	a.mu.RLock()
	token := a.session.Token
	a.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		logger.Error("Request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	logger.Request(method, path, resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		logger.Warn("Session expired, logging out", "path", path)
		a.Logout(ctx)
		return nil, ErrSessionExpired
	}
	return resp, nil
}

// Claims decodes the stored token without verifying it.
func (a *AuthService) Claims() (*TokenClaims, error) {
	a.mu.RLock()
	token := a.session.Token
	a.mu.RUnlock()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("token is not a JWT: %w", err)
	}

	out := &TokenClaims{}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	return out, nil
}

// GetGlobalAuthService returns the auth service from the global registry.
func GetGlobalAuthService() (*AuthService, error) {
	return Lookup[*AuthService](GetGlobalRegistry(), "auth")
}
