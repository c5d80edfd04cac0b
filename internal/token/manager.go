package token

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Info is the credential owned by the Manager. ExpiryTime is epoch
// milliseconds; zero means "never locally judged expired" and expiry is then
// only detected through server 401 responses.
type Info struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiryTime   int64  `json:"expiryTime,omitempty"`
}

// Manager is the single source of truth for the current credential. All
// reads and writes go through one mutex: the process is event-driven, but an
// awaited storage operation can still interleave with another one issuing a
// conflicting write, so writes are serialized explicitly.
type Manager struct {
	store Store
	mu    sync.Mutex
	now   func() time.Time
}

// NewManager returns a Manager persisting through the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// GetValidToken returns the access token if it is not locally expired, or ""
// without error otherwise. It never triggers a network call and never
// refreshes; refresh is the caller's explicit responsibility.
func (m *Manager) GetValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := m.load(ctx)
	if err != nil {
		return "", err
	}
	if info.AccessToken == "" || m.IsExpired(info) {
		return "", nil
	}
	return info.AccessToken, nil
}

// Info returns the full persisted credential. Missing state yields a zero Info.
func (m *Manager) Info(ctx context.Context) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

// SetInfo persists the credential. When no expiry is supplied and the access
// token is a JWT carrying an exp claim, expiry is derived from the claim.
// The parse is unverified: it only informs the local freshness judgement,
// the server stays authoritative.
func (m *Manager) SetInfo(ctx context.Context, info Info) error {
	if info.ExpiryTime == 0 && info.AccessToken != "" {
		if exp, ok := jwtExpiry(info.AccessToken); ok {
			info.ExpiryTime = exp
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(ctx, keyAccessToken, info.AccessToken); err != nil {
		return fmt.Errorf("persist access token: %w", err)
	}
	if err := m.store.Set(ctx, keyRefreshToken, info.RefreshToken); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	expiry := ""
	if info.ExpiryTime != 0 {
		expiry = strconv.FormatInt(info.ExpiryTime, 10)
	}
	if err := m.store.Set(ctx, keyExpiryTime, expiry); err != nil {
		return fmt.Errorf("persist expiry: %w", err)
	}
	return nil
}

// SetUser caches the authenticated user's profile alongside the credential.
func (m *Manager) SetUser(ctx context.Context, profile json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Set(ctx, keyUserProfile, string(profile))
}

// User returns the cached profile, or nil when absent.
func (m *Manager) User(ctx context.Context) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := m.store.Get(ctx, keyUserProfile)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

// Clear removes all persisted token and user state. Idempotent: clearing an
// already-empty store succeeds.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range allKeys {
		if err := m.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("clear %s: %w", key, err)
		}
	}
	return nil
}

// IsExpired is a pure, time-based check. An absent expiry means the token is
// never locally judged expired.
func (m *Manager) IsExpired(info Info) bool {
	if info.ExpiryTime == 0 {
		return false
	}
	return m.now().UnixMilli() >= info.ExpiryTime
}

func (m *Manager) load(ctx context.Context) (Info, error) {
	var info Info
	var err error
	if info.AccessToken, err = m.store.Get(ctx, keyAccessToken); err != nil {
		return info, fmt.Errorf("load access token: %w", err)
	}
	if info.RefreshToken, err = m.store.Get(ctx, keyRefreshToken); err != nil {
		return info, fmt.Errorf("load refresh token: %w", err)
	}
	expiry, err := m.store.Get(ctx, keyExpiryTime)
	if err != nil {
		return info, fmt.Errorf("load expiry: %w", err)
	}
	if expiry != "" {
		info.ExpiryTime, err = strconv.ParseInt(expiry, 10, 64)
		if err != nil {
			// Corrupt expiry: fall back to "no local judgement" rather
			// than locking the user out.
			info.ExpiryTime = 0
		}
	}
	return info, nil
}

// jwtExpiry extracts the exp claim from a JWT access token as epoch ms.
func jwtExpiry(accessToken string) (int64, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return 0, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	return exp.UnixMilli(), true
}
