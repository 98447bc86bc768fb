package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config override file whenever it changes on disk and
// hands the merged result to a callback. Reload failures are logged and the
// previous config stays in effect.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(ServerConfig)
	log      *slog.Logger
}

// NewWatcher watches the directory containing path; the file itself may not
// exist yet.
func NewWatcher(path string, onChange func(ServerConfig)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fs watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		path:     path,
		watcher:  fsw,
		onChange: onChange,
		log:      slog.With("config", path),
	}, nil
}

// Run blocks until ctx ends, invoking the callback after each relevant
// filesystem event.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.log.Warn("ignoring config change", "err", err)
				continue
			}
			w.log.Debug("config reloaded", "capacity", cfg.Capacity, "max_concurrency", cfg.MaxConcurrency)
			w.onChange(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("fs watcher error", "err", err)
		}
	}
}
