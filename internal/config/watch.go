// internal/config/watch.go
package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads path whenever it changes and calls fn with each config that
// loads and validates. Bursts of events within debounce collapse into one
// reload. The parent directory is watched, so editors that save by rename
// are still seen. Watching stops when ctx is done.
func Watch(ctx context.Context, path string, debounce time.Duration, fn func(*Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch path %s: %w", abs, err)
	}

	r := &reloader{path: abs, debounce: debounce, fn: fn}
	go r.loop(ctx, w)
	return nil
}

type reloader struct {
	path     string
	debounce time.Duration
	fn       func(*Config)

	mu    sync.Mutex
	timer *time.Timer
}

func (r *reloader) loop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()
	defer r.stop()

	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			r.schedule()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "path", r.path, "error", err)

		case <-ctx.Done():
			return
		}
	}
}

// schedule restarts the debounce timer
func (r *reloader) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, r.reload)
}

func (r *reloader) reload() {
	cfg, err := Load(r.path)
	if err != nil {
		slog.Warn("config reload skipped", "path", r.path, "error", err)
		return
	}
	r.fn(cfg)
}

func (r *reloader) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
}
