package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleFsEvent(t *testing.T) {
	root := t.TempDir()
	createTestFile(t, root, "note.md", "x")
	createTestFile(t, root, "image.png", "x")
	require.NoError(t, os.Mkdir(filepath.Join(root, "folder"), 0o755))

	store, err := NewFSStore(root)
	require.NoError(t, err)
	w, err := NewWatcher(store, nil)
	require.NoError(t, err)
	defer w.Close()

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want *Event
	}{
		{"create note", "note.md", fsnotify.Create, &Event{Kind: EventCreated, ID: "note.md"}},
		{"write note", "note.md", fsnotify.Write, &Event{Kind: EventModified, ID: "note.md"}},
		{"write and chmod", "note.md", fsnotify.Write | fsnotify.Chmod, &Event{Kind: EventModified, ID: "note.md"}},
		{"remove note", "gone.md", fsnotify.Remove, &Event{Kind: EventDeleted, ID: "gone.md"}},
		{"rename note", "old.md", fsnotify.Rename, &Event{Kind: EventDeleted, ID: "old.md"}},
		{"chmod only", "note.md", fsnotify.Chmod, nil},
		{"non-note file", "image.png", fsnotify.Write, nil},
		{"directory create", "folder", fsnotify.Create, nil},
		{"hidden note", ".obsidian/cache.md", fsnotify.Write, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := w.handleFsEvent(fsnotify.Event{Name: filepath.Join(root, filepath.FromSlash(tt.path)), Op: tt.op})
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("outside vault", func(t *testing.T) {
		assert.Nil(t, w.handleFsEvent(fsnotify.Event{Name: filepath.Join(t.TempDir(), "x.md"), Op: fsnotify.Write}))
	})
}

func TestWatcherDeliversEvents(t *testing.T) {
	root := t.TempDir()
	store, err := NewFSStore(root)
	require.NoError(t, err)

	w, err := NewWatcher(store, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := w.Watch(ctx)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(root, "new.md"), []byte("content"), 0o644)
	}()

	select {
	case ev := <-events:
		assert.Equal(t, "new.md", ev.ID)
		assert.Contains(t, []EventKind{EventCreated, EventModified}, ev.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for vault event")
	}

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
