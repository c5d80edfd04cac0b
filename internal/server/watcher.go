package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/verandahq/veranda/internal/bridge"
)

// WatchAssets watches the web bundle directory and pushes a reload
// notification to the webview when files change. Development convenience;
// gated by the dev_reload config flag.
func (s *Server) WatchAssets(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addDirs(watcher, s.webDir); err != nil {
		return err
	}

	logger := s.logger.With("component", "asset-watcher")
	logger.Info("watching web assets", "dir", s.webDir)

	// Editors fire bursts of events per save; debounce into one reload.
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					watcher.Add(event.Name)
				}
			}
			pending = time.After(200 * time.Millisecond)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)

		case <-pending:
			pending = nil
			data, _ := json.Marshal(map[string]string{"action": "show", "title": "reload"})
			err := s.Push(ctx, bridge.Envelope{Type: bridge.CategoryNotification, Data: data})
			if err != nil {
				logger.Debug("reload push skipped", "error", err)
				continue
			}
			logger.Info("pushed reload notification")
		}
	}
}

func addDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
