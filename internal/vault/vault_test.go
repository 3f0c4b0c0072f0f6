package vault

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestFSStoreList(t *testing.T) {
	root := t.TempDir()
	createTestFile(t, root, "b.md", "B")
	createTestFile(t, root, "daily/2024-01-05.md", "Jan")
	createTestFile(t, root, "image.png", "binary")
	createTestFile(t, root, ".obsidian/workspace.md", "hidden")
	createTestFile(t, root, ".draft.md", "hidden")

	store, err := NewFSStore(root)
	require.NoError(t, err)

	docs, err := store.List(context.Background())
	require.NoError(t, err)

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{"b.md", "daily/2024-01-05.md"}, ids)
	assert.Equal(t, int64(1), docs[0].Size)
	assert.False(t, docs[0].ModTime.IsZero())
}

func TestFSStoreReadStat(t *testing.T) {
	root := t.TempDir()
	p := createTestFile(t, root, "notes/a.md", "hello vault")
	mtime := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(p, mtime, mtime))

	store, err := NewFSStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	text, err := store.Read(ctx, "notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "hello vault", text)

	doc, err := store.Stat(ctx, "notes/a.md")
	require.NoError(t, err)
	assert.True(t, doc.ModTime.Equal(mtime))

	_, err = store.Read(ctx, "missing.md")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Stat(ctx, "missing.md")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Read(ctx, "../escape.md")
	assert.Error(t, err)
}

func TestNewFSStoreRejectsFile(t *testing.T) {
	root := t.TempDir()
	p := createTestFile(t, root, "a.md", "x")

	_, err := NewFSStore(p)
	assert.Error(t, err)
	_, err = NewFSStore(filepath.Join(root, "nope"))
	assert.Error(t, err)
}

func TestIsExcluded(t *testing.T) {
	folders := []string{"Archive", "/templates/", ""}

	assert.True(t, IsExcluded("Archive/old.md", folders))
	assert.True(t, IsExcluded("templates/daily.md", folders))
	assert.False(t, IsExcluded("Archived.md", folders))
	assert.False(t, IsExcluded("notes/Archive/x.md", folders))

	docs := []Document{{ID: "Archive/a.md"}, {ID: "b.md"}}
	assert.Equal(t, []Document{{ID: "b.md"}}, FilterExcluded(docs, folders))
	assert.Len(t, docs, 2)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	t0 := time.UnixMilli(1000)

	m.Put("a.md", "first", t0)
	doc := m.Put("a.md", "second", t0.Add(time.Second))
	assert.Equal(t, t0, doc.CreatedAt)

	text, err := m.Read(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "second", text)

	m.Remove("a.md")
	_, err = m.Stat(ctx, "a.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "created", EventCreated.String())
	assert.Equal(t, "modified", EventModified.String())
	assert.Equal(t, "deleted", EventDeleted.String())
}
