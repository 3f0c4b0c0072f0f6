package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func TestEmbeddingPutGet(t *testing.T) {
	store := setupTestDB(t).Embeddings()
	ctx := context.Background()

	modified := time.UnixMilli(1_700_000_000_123)
	err := store.Put(ctx, &EmbeddingRecord{ID: "notes/a.md", Vector: []float32{0.1, 0.2, 0.3}, LastModified: modified})
	require.NoError(t, err)

	got, err := store.Get(ctx, "notes/a.md")
	require.NoError(t, err)
	assert.Equal(t, "notes/a.md", got.ID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got.Vector)
	assert.Equal(t, modified.UnixMilli(), got.LastModified.UnixMilli())
}

func TestEmbeddingPutOverwrites(t *testing.T) {
	store := setupTestDB(t).Embeddings()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &EmbeddingRecord{ID: "a.md", Vector: []float32{1, 0}, LastModified: time.UnixMilli(1000)}))
	require.NoError(t, store.Put(ctx, &EmbeddingRecord{ID: "a.md", Vector: []float32{0, 1, 0}, LastModified: time.UnixMilli(2000)}))

	got, err := store.Get(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 0}, got.Vector)
	assert.Equal(t, int64(2000), got.LastModified.UnixMilli())

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEmbeddingGetMissing(t *testing.T) {
	store := setupTestDB(t).Embeddings()

	_, err := store.Get(context.Background(), "missing.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmbeddingDeleteAndClear(t *testing.T) {
	store := setupTestDB(t).Embeddings()
	ctx := context.Background()

	for _, id := range []string{"a.md", "b.md", "c.md"} {
		require.NoError(t, store.Put(ctx, &EmbeddingRecord{ID: id, Vector: []float32{1}, LastModified: time.Now()}))
	}

	require.NoError(t, store.Delete(ctx, "b.md"))
	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a.md", all[0].ID)
	assert.Equal(t, "c.md", all[1].ID)

	// Deleting an absent record is not an error
	assert.NoError(t, store.Delete(ctx, "b.md"))

	require.NoError(t, store.Clear(ctx))
	all, err = store.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEmbeddingPutRejectsEmptyID(t *testing.T) {
	store := setupTestDB(t).Embeddings()
	err := store.Put(context.Background(), &EmbeddingRecord{Vector: []float32{1}})
	assert.Error(t, err)
}

func TestDateRecordRoundTrip(t *testing.T) {
	store := setupTestDB(t).Dates()
	ctx := context.Background()

	day1 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.Local)
	day2 := time.Date(2024, 3, 15, 0, 0, 0, 0, time.Local)
	record := &DateRecord{
		ID:           "journal/jan.md",
		CreatedAt:    time.UnixMilli(1_704_412_800_000),
		ModifiedAt:   time.UnixMilli(1_704_499_200_500),
		ContentDates: []time.Time{day1, day2},
		LastIndexed:  time.UnixMilli(1_704_499_300_000),
	}
	require.NoError(t, store.Put(ctx, record))

	got, err := store.Get(ctx, "journal/jan.md")
	require.NoError(t, err)
	assert.Equal(t, record.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())
	assert.Equal(t, record.ModifiedAt.UnixMilli(), got.ModifiedAt.UnixMilli())
	assert.Equal(t, record.LastIndexed.UnixMilli(), got.LastIndexed.UnixMilli())
	require.Len(t, got.ContentDates, 2)
	assert.True(t, got.ContentDates[0].Equal(day1))
	assert.True(t, got.ContentDates[1].Equal(day2))
}

func TestDateRecordEmptyContentDates(t *testing.T) {
	store := setupTestDB(t).Dates()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &DateRecord{ID: "a.md", CreatedAt: time.Now(), ModifiedAt: time.Now(), LastIndexed: time.Now()}))

	got, err := store.Get(ctx, "a.md")
	require.NoError(t, err)
	assert.Empty(t, got.ContentDates)

	require.NoError(t, store.Delete(ctx, "a.md"))
	_, err = store.Get(ctx, "a.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoresAreIndependent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Embeddings().Put(ctx, &EmbeddingRecord{ID: "a.md", Vector: []float32{1}, LastModified: time.Now()}))
	require.NoError(t, db.Dates().Put(ctx, &DateRecord{ID: "a.md", CreatedAt: time.Now(), ModifiedAt: time.Now(), LastIndexed: time.Now()}))

	require.NoError(t, db.Embeddings().Clear(ctx))

	_, err := db.Dates().Get(ctx, "a.md")
	assert.NoError(t, err)

	status, err := db.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Embeddings)
	assert.Equal(t, 1, status.DateRecords)
	assert.Equal(t, BuildMode, status.BuildMode)
}

// TestDurability verifies records survive closing and reopening the database file.
func TestDurability(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()

	db, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, db.Embeddings().Put(ctx, &EmbeddingRecord{ID: "a.md", Vector: []float32{0.5, 0.5}, LastModified: time.UnixMilli(42)}))
	require.NoError(t, db.Close())

	db, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.Embeddings().Get(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, got.Vector)
	assert.Equal(t, int64(42), got.LastModified.UnixMilli())
}
