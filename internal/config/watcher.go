package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads Config from disk whenever path changes, debouncing rapid
// successive writes (editors often emit several events for one save).
// Grounded on the teacher's skills.Manager fsnotify watcher/debounce idiom.
type Watcher struct {
	log      *slog.Logger
	path     string
	debounce time.Duration
	onReload func(*Config, error)

	watcher *fsnotify.Watcher
}

// NewWatcher builds a Watcher for path. onReload is invoked (from the
// Watcher's own goroutine) after every debounced change, with either a
// freshly loaded Config or the error Load returned.
func NewWatcher(log *slog.Logger, path string, onReload func(*Config, error)) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{
		log:      log,
		path:     filepath.Clean(path),
		debounce: 250 * time.Millisecond,
		onReload: onReload,
		watcher:  fw,
	}, nil
}

// Run watches for changes until ctx is canceled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	fire := func() {
		cfg, err := Load(w.path)
		if err != nil {
			w.log.Error("config reload failed", "path", w.path, "error", err)
		} else {
			w.log.Info("config reloaded", "path", w.path)
		}
		w.onReload(cfg, err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, fire)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("config watcher error", "error", err)
		}
	}
}

// Close stops watching and releases the underlying OS resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
