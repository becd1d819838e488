// Package watch re-runs work when a file changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reports changes to a single file.
type Watcher struct {
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// New watches path. The parent directory is watched rather than the file
// itself so that editors which save by renaming a temp file are still seen.
func New(path string, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{path: abs, debounce: debounce, watcher: fw}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run calls onChange once per burst of changes to the file until ctx is
// done. onChange runs on the caller's goroutine, so changes made while it
// runs are coalesced into the next call.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context)) error {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("watched file changed", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			onChange(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
