package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/verandahq/veranda/internal/api"
	"github.com/verandahq/veranda/internal/capability"
	"github.com/verandahq/veranda/internal/config"
	"github.com/verandahq/veranda/internal/router"
	"github.com/verandahq/veranda/internal/server"
	"github.com/verandahq/veranda/internal/token"
)

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}

	ctx, cancel := signalContext(parent)
	defer cancel()

	store, closeStore, err := openTokenStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	tokens := token.NewManager(store)
	client := api.New(cfg.API.BaseURL, tokens,
		api.WithTimeout(cfg.APITimeout()),
		api.WithMaxRetries(uint64(cfg.API.MaxRetries)))

	caps := capability.Simulated()
	caps.Notifier = capability.NewNativeNotifier(slog.Default())

	r := router.New(client, tokens, caps, slog.Default())
	srv := server.New(cfg.Server.Addr, cfg.Server.WebDir, r, slog.Default())

	if cfg.Server.DevReload {
		go func() {
			if err := srv.WatchAssets(ctx); err != nil {
				slog.Warn("asset watcher stopped", "error", err)
			}
		}()
	}

	return srv.Run(ctx)
}

// openTokenStore picks the credential backend: explicit config wins, then
// the OS keychain when functional, then SQLite.
func openTokenStore(cfg *config.Config) (token.Store, func(), error) {
	noop := func() {}
	switch cfg.Tokens.Backend {
	case "memory":
		return token.NewMemoryStore(), noop, nil
	case "keyring":
		return token.NewKeyringStore(), noop, nil
	case "sqlite":
		return openSQLite(cfg)
	case "":
		if token.KeyringAvailable() {
			slog.Info("using keychain token store")
			return token.NewKeyringStore(), noop, nil
		}
		return openSQLite(cfg)
	default:
		return nil, nil, fmt.Errorf("unknown token backend %q", cfg.Tokens.Backend)
	}
}

func openSQLite(cfg *config.Config) (token.Store, func(), error) {
	store, err := token.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("open token store: %w", err)
	}
	slog.Info("using sqlite token store", "path", cfg.DBPath())
	return store, func() { store.Close() }, nil
}
