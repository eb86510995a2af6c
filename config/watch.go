package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the burst of events editors produce on save.
const watchDebounce = 200 * time.Millisecond

// Watch calls fn with the re-read document each time path is written or
// replaced. A document that fails to parse or validate is reported through
// fn's error and never returned as a config. Watch returns once the watcher
// is installed; it stops when ctx is done.
func Watch(ctx context.Context, path string, fn func(*Config, error)) error {
	path = filepath.Clean(path)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watcher: %w", err)
	}
	// Watch the directory: editors and Save replace the file by rename.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("config watch %s: %w", filepath.Dir(path), err)
	}

	go func() {
		defer w.Close()
		timer := time.NewTimer(watchDebounce)
		timer.Stop()
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != path {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					timer.Reset(watchDebounce)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				fn(nil, fmt.Errorf("config watcher: %w", err))
			case <-timer.C:
				cfg, err := read(path)
				if err == nil {
					err = cfg.Validate()
				}
				if err != nil {
					fn(nil, err)
					continue
				}
				fn(cfg, nil)
			}
		}
	}()
	return nil
}
