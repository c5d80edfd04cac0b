package token

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func managerAt(store Store, at time.Time) *Manager {
	m := NewManager(store)
	m.now = func() time.Time { return at }
	return m
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	m := managerAt(NewMemoryStore(), now)

	cases := []struct {
		name string
		info Info
		want bool
	}{
		{"no expiry never locally expires", Info{AccessToken: "tok"}, false},
		{"future expiry", Info{AccessToken: "tok", ExpiryTime: now.Add(time.Hour).UnixMilli()}, false},
		{"past expiry", Info{AccessToken: "tok", ExpiryTime: now.Add(-time.Second).UnixMilli()}, true},
		{"expiry right now", Info{AccessToken: "tok", ExpiryTime: now.UnixMilli()}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.IsExpired(tc.info); got != tc.want {
				t.Errorf("IsExpired(%+v) = %v, want %v", tc.info, got, tc.want)
			}
		})
	}
}

func TestSetGetClear(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := managerAt(NewMemoryStore(), now)

	info := Info{
		AccessToken:  "tok-live",
		RefreshToken: "refresh-1",
		ExpiryTime:   now.Add(time.Hour).UnixMilli(),
	}
	if err := m.SetInfo(ctx, info); err != nil {
		t.Fatalf("SetInfo: %v", err)
	}
	if err := m.SetUser(ctx, json.RawMessage(`{"name":"Dana"}`)); err != nil {
		t.Fatalf("SetUser: %v", err)
	}

	got, err := m.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if got != info {
		t.Errorf("Info = %+v, want %+v", got, info)
	}

	tok, err := m.GetValidToken(ctx)
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if tok != "tok-live" {
		t.Errorf("token = %q", tok)
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	tok, err = m.GetValidToken(ctx)
	if err != nil {
		t.Fatalf("GetValidToken after clear: %v", err)
	}
	if tok != "" {
		t.Errorf("token after clear = %q", tok)
	}
	user, err := m.User(ctx)
	if err != nil {
		t.Fatalf("User after clear: %v", err)
	}
	if user != nil {
		t.Errorf("user after clear = %s", user)
	}

	// Clearing again is a no-op, not an error.
	if err := m.Clear(ctx); err != nil {
		t.Errorf("second Clear: %v", err)
	}
}

func TestExpiredTokenReadsAsEmpty(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryStore()
	m := managerAt(store, now)

	err := m.SetInfo(ctx, Info{AccessToken: "tok-stale", ExpiryTime: now.Add(-time.Minute).UnixMilli()})
	if err != nil {
		t.Fatalf("SetInfo: %v", err)
	}

	tok, err := m.GetValidToken(ctx)
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if tok != "" {
		t.Errorf("expired token surfaced: %q", tok)
	}

	// The credential itself is still persisted; only the read judges it.
	info, err := m.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.AccessToken != "tok-stale" {
		t.Errorf("persisted token = %q", info.AccessToken)
	}
}

func TestSetInfoDerivesExpiryFromJWT(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := managerAt(NewMemoryStore(), now)

	exp := now.Add(30 * time.Minute).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := m.SetInfo(ctx, Info{AccessToken: signed}); err != nil {
		t.Fatalf("SetInfo: %v", err)
	}
	info, err := m.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.ExpiryTime != exp.UnixMilli() {
		t.Errorf("derived expiry = %d, want %d", info.ExpiryTime, exp.UnixMilli())
	}
}

func TestSetInfoExplicitExpiryWins(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	m := managerAt(NewMemoryStore(), now)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	explicit := now.Add(10 * time.Minute).UnixMilli()
	if err := m.SetInfo(ctx, Info{AccessToken: signed, ExpiryTime: explicit}); err != nil {
		t.Fatalf("SetInfo: %v", err)
	}
	info, _ := m.Info(ctx)
	if info.ExpiryTime != explicit {
		t.Errorf("expiry = %d, want explicit %d", info.ExpiryTime, explicit)
	}
}

func TestOpaqueTokenHasNoDerivedExpiry(t *testing.T) {
	ctx := context.Background()
	m := managerAt(NewMemoryStore(), time.Now())

	if err := m.SetInfo(ctx, Info{AccessToken: "not-a-jwt"}); err != nil {
		t.Fatalf("SetInfo: %v", err)
	}
	info, _ := m.Info(ctx)
	if info.ExpiryTime != 0 {
		t.Errorf("expiry = %d, want 0", info.ExpiryTime)
	}
	tok, _ := m.GetValidToken(ctx)
	if tok != "not-a-jwt" {
		t.Errorf("opaque token without expiry should stay valid, got %q", tok)
	}
}

func TestCorruptExpiryFallsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.Set(ctx, keyAccessToken, "tok-live")
	store.Set(ctx, keyExpiryTime, "yesterday-ish")

	m := managerAt(store, time.Now())
	tok, err := m.GetValidToken(ctx)
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	// Corrupt expiry degrades to "no local judgement", not a lockout.
	if tok != "tok-live" {
		t.Errorf("token = %q", tok)
	}
}
