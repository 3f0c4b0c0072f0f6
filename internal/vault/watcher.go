package vault

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher turns filesystem notifications under the vault into note events.
type Watcher struct {
	store   *FSStore
	fsw     *fsnotify.Watcher
	logger  *slog.Logger
	closeCh chan struct{}
}

// NewWatcher starts watching every non-hidden directory of the store.
func NewWatcher(store *FSStore, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{store: store, fsw: fsw, logger: logger, closeCh: make(chan struct{})}
	if err := w.addTree(store.Root()); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree registers dir and its non-hidden subdirectories; fsnotify is not recursive.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.store.Root() && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		return nil
	})
}

// Watch delivers events until ctx is cancelled or the watcher is closed.
func (w *Watcher) Watch(ctx context.Context) <-chan Event {
	out := make(chan Event, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.closeCh:
				return
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("vault watcher error", "error", err)
			case ev, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				event := w.handleFsEvent(ev)
				if event == nil {
					continue
				}
				select {
				case out <- *event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// handleFsEvent maps one notification to a note event, or nil when it is
// irrelevant (directories, hidden paths, non-notes, chmod).
func (w *Watcher) handleFsEvent(ev fsnotify.Event) *Event {
	id, ok := w.store.ID(ev.Name)
	if !ok || hasHiddenSegment(id) {
		return nil
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("failed to watch new folder", "path", id, "error", err)
			}
			return nil
		}
	}

	if !IsNote(ev.Name) {
		return nil
	}

	switch {
	case ev.Has(fsnotify.Create):
		return &Event{Kind: EventCreated, ID: id}
	case ev.Has(fsnotify.Write):
		return &Event{Kind: EventModified, ID: id}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return &Event{Kind: EventDeleted, ID: id}
	default:
		return nil
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	select {
	case <-w.closeCh:
		return nil
	default:
		close(w.closeCh)
	}
	return w.fsw.Close()
}
