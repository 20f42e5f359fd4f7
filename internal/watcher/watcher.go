// Package watcher reports changes to profile sources in the profile directory.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event kinds passed to the callback.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

// DefaultDebounce coalesces the bursts of writes editors produce on save.
const DefaultDebounce = 100 * time.Millisecond

// EventCallback is called once per changed profile after the debounce
// window. kind is one of Created, Updated or Deleted.
type EventCallback func(kind string, name string)

// Watch starts an fsnotify watcher on root and reports .tex file changes
// until ctx is cancelled. Subdirectories are not watched.
func Watch(ctx context.Context, root string, debounce time.Duration, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]string)
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	schedule := func(name, kind string) {
		if prev, ok := pending[name]; ok {
			kind = merge(prev, kind)
		}
		pending[name] = kind
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			for name, kind := range pending {
				logger.Debug("watcher: changed", slog.String("profile", name), slog.String("op", kind))
				if cb != nil {
					cb(kind, name)
				}
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if filepath.Dir(ev.Name) != filepath.Clean(root) || !strings.HasSuffix(name, ".tex") {
				continue
			}

			switch {
			case ev.Op&fsnotify.Create != 0:
				schedule(name, Created)
			case ev.Op&fsnotify.Write != 0:
				schedule(name, Updated)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify fires Rename on the old path only; the new
				// name arrives as a separate Create.
				schedule(name, Deleted)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// merge folds the next event for a file into the one pending in the same
// debounce window. A create followed by writes is still a create; a file
// replaced by rename (removed, then created) was updated.
func merge(prev, next string) string {
	switch {
	case next == Deleted:
		return Deleted
	case prev == Created:
		return Created
	case prev == Deleted && next == Created:
		return Updated
	case prev == Updated:
		return Updated
	}
	return next
}
