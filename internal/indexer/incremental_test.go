package indexer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vaultrag/internal/storage"
	"github.com/dshills/vaultrag/internal/vault"
)

func TestDebounceCoalescesEdits(t *testing.T) {
	env := setupMaintainer(t)

	for i := 0; i < 5; i++ {
		env.notes.Put("a.md", "alpha draft", env.now.Add(time.Duration(i)*time.Second))
		env.m.HandleEvent(vault.Event{Kind: vault.EventModified, ID: "a.md"})
		env.clk.Advance(time.Second)
	}
	assert.Equal(t, 0, env.emb.count(), "window restarted by every edit")
	assert.Equal(t, 1, env.m.Status().Pending)

	env.clk.Advance(DefaultDebounce)
	assert.Equal(t, 1, env.emb.count(), "five edits, one provider call")
	assert.Equal(t, 0, env.m.Status().Pending)

	last := env.m.Status().LastRun
	require.NotNil(t, last)
	assert.Equal(t, ModeIncremental, last.Mode)
	assert.Equal(t, 1, last.Embedded)
}

func TestDebounceBatchesDifferentNotes(t *testing.T) {
	env := setupMaintainer(t)
	env.put("a.md", "alpha")
	env.put("b.md", "beta")

	env.m.HandleEvent(vault.Event{Kind: vault.EventCreated, ID: "a.md"})
	env.clk.Advance(2 * time.Second)
	env.m.HandleEvent(vault.Event{Kind: vault.EventModified, ID: "b.md"})
	env.clk.Advance(4 * time.Second)
	assert.Equal(t, 0, env.emb.count())

	env.clk.Advance(time.Second)
	assert.Equal(t, 2, env.emb.count())
	assert.ElementsMatch(t, []string{"a.md", "b.md"}, env.embeddingIDs(t))
	assert.Equal(t, 0, env.clk.Pending())
}

func TestHandleEventIgnoresExcluded(t *testing.T) {
	env := setupMaintainer(t)
	env.put("Archive/a.md", "alpha")

	env.m.HandleEvent(vault.Event{Kind: vault.EventCreated, ID: "Archive/a.md"})
	assert.Equal(t, 0, env.m.Status().Pending)
	assert.Equal(t, 0, env.clk.Pending())
}

func TestDeleteEventRemovesRecords(t *testing.T) {
	env := setupMaintainer(t)
	ctx := context.Background()
	env.put("a.md", "alpha")
	_, err := env.m.RunBulk(ctx, false)
	require.NoError(t, err)

	env.notes.Remove("a.md")
	env.m.HandleEvent(vault.Event{Kind: vault.EventDeleted, ID: "a.md"})

	_, err = env.db.Embeddings().Get(ctx, "a.md")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = env.dates.Get(ctx, "a.md")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteAfterModifyDropsQueuedNote(t *testing.T) {
	env := setupMaintainer(t)
	env.put("a.md", "alpha")

	env.m.HandleEvent(vault.Event{Kind: vault.EventModified, ID: "a.md"})
	env.notes.Remove("a.md")
	env.m.HandleEvent(vault.Event{Kind: vault.EventDeleted, ID: "a.md"})
	env.clk.Advance(DefaultDebounce)

	assert.Equal(t, 0, env.emb.count())
	assert.Empty(t, env.embeddingIDs(t))
}

func TestIncrementalMissingNoteRemoved(t *testing.T) {
	env := setupMaintainer(t)
	ctx := context.Background()
	env.put("a.md", "alpha")
	_, err := env.m.RunBulk(ctx, false)
	require.NoError(t, err)

	// Removed without a delete event reaching the maintainer.
	env.notes.Remove("a.md")
	env.m.HandleEvent(vault.Event{Kind: vault.EventModified, ID: "a.md"})
	env.clk.Advance(DefaultDebounce)

	assert.Empty(t, env.embeddingIDs(t))
	assert.Equal(t, 1, env.m.Status().LastRun.Removed)
}

func TestChangesQueuedDuringBulk(t *testing.T) {
	env := setupMaintainer(t)
	env.put("a.md", "alpha")
	env.put("b.md", "beta")
	started, release := blockFirstCall(env.emb)

	done := make(chan *Stats, 1)
	go func() {
		stats, err := env.m.RunBulk(context.Background(), false)
		assert.NoError(t, err)
		done <- stats
	}()
	<-started

	env.put("new.md", "fresh note")
	env.m.HandleEvent(vault.Event{Kind: vault.EventCreated, ID: "new.md"})
	env.clk.Advance(DefaultDebounce)

	assert.Equal(t, 1, env.m.Status().Pending, "flush deferred while bulk runs")
	assert.Equal(t, ModeBulk, env.m.Status().Mode)

	close(release)
	bulk := <-done
	assert.Equal(t, ModeBulk, bulk.Mode)
	assert.Equal(t, 2, bulk.Embedded)

	// The deferred batch ran on the bulk goroutine before RunBulk returned.
	assert.ElementsMatch(t, []string{"a.md", "b.md", "new.md"}, env.embeddingIDs(t))
	last := env.m.Status().LastRun
	assert.Equal(t, ModeIncremental, last.Mode)
	assert.Equal(t, 1, last.Embedded)
	assert.Equal(t, 0, env.m.Status().Pending)
}

func TestWatchForwardsEvents(t *testing.T) {
	env := setupMaintainer(t)
	env.put("a.md", "alpha")

	events := make(chan vault.Event, 1)
	events <- vault.Event{Kind: vault.EventModified, ID: "a.md"}
	close(events)

	require.NoError(t, env.m.Watch(context.Background(), events))
	assert.Equal(t, 1, env.m.Status().Pending)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, env.m.Watch(ctx, make(chan vault.Event)), context.Canceled)
}

func TestCloseCancelsPendingFlush(t *testing.T) {
	env := setupMaintainer(t)
	env.put("a.md", "alpha")

	env.m.HandleEvent(vault.Event{Kind: vault.EventModified, ID: "a.md"})
	require.NoError(t, env.m.Close())
	env.clk.Advance(DefaultDebounce)

	assert.Equal(t, 0, env.emb.count())
}
