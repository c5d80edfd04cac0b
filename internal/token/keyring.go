package token

import (
	"context"
	"errors"
	"fmt"
	"os"

	zkr "github.com/zalando/go-keyring"
)

const keyringService = "veranda"

// KeyringStore persists credential state in the OS keychain. Preferred over
// SQLite on desktops where a keychain is available; tokens never touch disk
// in plain text.
type KeyringStore struct{}

// NewKeyringStore returns a keychain-backed store.
func NewKeyringStore() *KeyringStore { return &KeyringStore{} }

// KeyringAvailable returns true if the OS keychain is functional.
// Returns false if VERANDA_KEYRING_DISABLED=1 is set (for headless/CI).
// Otherwise probes the keychain with a test write/delete cycle.
func KeyringAvailable() bool {
	if os.Getenv("VERANDA_KEYRING_DISABLED") == "1" {
		return false
	}
	const probeService = "veranda-keyring-probe"
	if err := zkr.Set(probeService, "probe", "ok"); err != nil {
		return false
	}
	_ = zkr.Delete(probeService, "probe")
	return true
}

// Get returns the stored value, or "" when absent.
func (s *KeyringStore) Get(_ context.Context, key string) (string, error) {
	value, err := zkr.Get(keyringService, key)
	if errors.Is(err, zkr.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keychain get %s: %w", key, err)
	}
	return value, nil
}

// Set stores a value in the keychain.
func (s *KeyringStore) Set(_ context.Context, key, value string) error {
	if err := zkr.Set(keyringService, key, value); err != nil {
		return fmt.Errorf("keychain set %s: %w", key, err)
	}
	return nil
}

// Delete removes a value. Deleting an absent key is a no-op.
func (s *KeyringStore) Delete(_ context.Context, key string) error {
	err := zkr.Delete(keyringService, key)
	if err != nil && !errors.Is(err, zkr.ErrNotFound) {
		return fmt.Errorf("keychain delete %s: %w", key, err)
	}
	return nil
}
