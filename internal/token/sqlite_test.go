package token

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "veranda.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if v, err := store.Get(ctx, "access_token"); err != nil || v != "" {
		t.Fatalf("Get on empty store = %q, %v", v, err)
	}

	if err := store.Set(ctx, "access_token", "tok-1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "access_token", "tok-2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, err := store.Get(ctx, "access_token")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "tok-2" {
		t.Errorf("value = %q, want tok-2", v)
	}

	if err := store.Delete(ctx, "access_token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if v, _ := store.Get(ctx, "access_token"); v != "" {
		t.Errorf("value after delete = %q", v)
	}

	// Deleting an absent key is a no-op.
	if err := store.Delete(ctx, "access_token"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestSQLiteStorePersistsAcrossReopens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "veranda.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	m := NewManager(store)
	info := Info{AccessToken: "tok-persist", ExpiryTime: time.Now().Add(time.Hour).UnixMilli()}
	if err := m.SetInfo(ctx, info); err != nil {
		t.Fatalf("SetInfo: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := NewManager(reopened).Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if got != info {
		t.Errorf("Info = %+v, want %+v", got, info)
	}
}

func TestSQLiteStoreCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "veranda.db")
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	store.Close()
}
