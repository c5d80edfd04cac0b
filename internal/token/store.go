// Package token owns the authentication credential's lifecycle: persistence,
// local expiry judgement, and invalidation. It is the single source of truth
// for the current token; nothing here ever performs a network call.
package token

import (
	"context"
	"sync"
)

// Store is a persistent key/value adapter for credential state. Keys are
// opaque strings owned by this package. A missing key reads as the empty
// string, never an error: callers treat it as "unauthenticated". Each write
// is independently atomic; there are no multi-key transactions.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Storage keys. Opaque to callers.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyExpiryTime   = "expiry_time"
	keyUserProfile  = "user_profile"
)

var allKeys = []string{keyAccessToken, keyRefreshToken, keyExpiryTime, keyUserProfile}

// MemoryStore is an in-process Store for tests and ephemeral sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the stored value, or "" when absent.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

// Set stores a value.
func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Delete removes a value. Deleting an absent key is a no-op.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
