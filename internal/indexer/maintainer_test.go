package indexer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/dshills/vaultrag/internal/clock"
	"github.com/dshills/vaultrag/internal/dateindex"
	"github.com/dshills/vaultrag/internal/embedder"
	"github.com/dshills/vaultrag/internal/storage"
	"github.com/dshills/vaultrag/internal/vault"
	"github.com/dshills/vaultrag/pkg/types"
)

// fakeEmbedder records every text it is asked to embed.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error // Returned when the text contains the key
	hook  func(text string)
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Text)
	hook := f.hook
	var err error
	for k, e := range f.errs {
		if strings.Contains(req.Text, k) {
			err = e
		}
	}
	f.mu.Unlock()

	if hook != nil {
		hook(req.Text)
	}
	if err != nil {
		return nil, err
	}
	return &embedder.Embedding{Vector: []float32{float32(len(req.Text)), 1}, Dimension: 2, Provider: "fake"}, nil
}

func (f *fakeEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	resp := &embedder.BatchEmbeddingResponse{Provider: "fake"}
	for _, text := range req.Texts {
		emb, err := f.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		resp.Embeddings = append(resp.Embeddings, emb)
	}
	return resp, nil
}

func (f *fakeEmbedder) Dimension() int   { return 2 }
func (f *fakeEmbedder) Provider() string { return "fake" }
func (f *fakeEmbedder) Model() string    { return "fake" }
func (f *fakeEmbedder) Close() error     { return nil }

func (f *fakeEmbedder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type testEnv struct {
	m     *Maintainer
	notes *vault.MemoryStore
	db    *storage.SQLiteStorage
	dates *dateindex.Index
	emb   *fakeEmbedder
	clk   *clock.Fake
	now   time.Time
}

func setupMaintainer(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	notes := vault.NewMemoryStore()
	excluded := []string{"Archive"}
	dates := dateindex.New(db.Dates(), notes, dateindex.Options{Clock: clk, Location: time.UTC, ExcludedFolders: excluded})
	emb := &fakeEmbedder{}

	m := New(Deps{
		Docs:       notes,
		Embeddings: db.Embeddings(),
		Dates:      dates,
		Embedder:   emb,
		Clock:      clk,
	}, Config{ExcludedFolders: excluded, MinCallInterval: -1})
	t.Cleanup(func() { _ = m.Close() })

	return &testEnv{m: m, notes: notes, db: db, dates: dates, emb: emb, clk: clk, now: now}
}

func (e *testEnv) put(id, text string) vault.Document {
	return e.notes.Put(id, text, e.now.Add(-time.Hour))
}

func (e *testEnv) embeddingIDs(t *testing.T) []string {
	t.Helper()
	records, err := e.db.Embeddings().GetAll(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestRunBulk(t *testing.T) {
	env := setupMaintainer(t)
	ctx := context.Background()
	env.put("a.md", "alpha note about gardens")
	env.put("b.md", "beta note about rivers")
	env.put("Archive/old.md", "archived note")

	stats, err := env.m.RunBulk(ctx, false)
	require.NoError(t, err)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, ModeBulk, stats.Mode)
	assert.Equal(t, 2, stats.Embedded)
	assert.Equal(t, 2, stats.DatesIndexed)
	assert.Equal(t, 2, env.emb.count())
	assert.ElementsMatch(t, []string{"a.md", "b.md"}, env.embeddingIDs(t))

	_, err = env.dates.Get(ctx, "Archive/old.md")
	assert.ErrorIs(t, err, storage.ErrNotFound, "excluded notes are never date-indexed")

	status := env.m.Status()
	assert.Equal(t, StateIdle, status.State)
	assert.Equal(t, stats, status.LastRun)
}

func TestRunBulkIdempotent(t *testing.T) {
	env := setupMaintainer(t)
	ctx := context.Background()
	env.put("a.md", "alpha note")
	env.put("b.md", "beta note")

	_, err := env.m.RunBulk(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 2, env.emb.count())

	stats, err := env.m.RunBulk(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Embedded)
	assert.Equal(t, 0, stats.DatesIndexed)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 2, env.emb.count(), "unchanged notes are not re-embedded")
}

func TestRunBulkForce(t *testing.T) {
	env := setupMaintainer(t)
	ctx := context.Background()
	env.put("a.md", "alpha note")

	_, err := env.m.RunBulk(ctx, false)
	require.NoError(t, err)
	stats, err := env.m.RunBulk(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Embedded)
	assert.Equal(t, 2, env.emb.count())
}

func TestRunBulkRemovesOrphans(t *testing.T) {
	env := setupMaintainer(t)
	ctx := context.Background()
	env.put("a.md", "alpha note")

	orphan := &storage.EmbeddingRecord{ID: "X.md", Vector: []float32{1, 0}, LastModified: time.UnixMilli(1000)}
	require.NoError(t, env.db.Embeddings().Put(ctx, orphan))
	excluded := &storage.EmbeddingRecord{ID: "Archive/x.md", Vector: []float32{1, 0}, LastModified: time.UnixMilli(1000)}
	require.NoError(t, env.db.Embeddings().Put(ctx, excluded))
	require.NoError(t, env.db.Dates().Put(ctx, &storage.DateRecord{ID: "X.md", LastIndexed: env.now}))

	stats, err := env.m.RunBulk(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Removed)
	assert.Equal(t, []string{"a.md"}, env.embeddingIDs(t))

	_, err = env.dates.Get(ctx, "X.md")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEmbeddingStale(t *testing.T) {
	env := setupMaintainer(t)
	ctx := context.Background()
	require.NoError(t, env.db.Embeddings().Put(ctx, &storage.EmbeddingRecord{
		ID: "N.md", Vector: []float32{1}, LastModified: time.UnixMilli(1000),
	}))

	tests := []struct {
		name  string
		id    string
		mtime int64
		want  bool
	}{
		{"newer mtime", "N.md", 2000, true},
		{"older mtime", "N.md", 500, false},
		{"same mtime", "N.md", 1000, false},
		{"sub-second change", "N.md", 1001, true},
		{"no record", "missing.md", 500, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.m.embeddingStale(ctx, vault.Document{ID: tt.id, ModTime: time.UnixMilli(tt.mtime)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunBulkAuthFailureAborts(t *testing.T) {
	env := setupMaintainer(t)
	ctx := context.Background()
	env.put("a.md", "alpha note")
	env.put("b.md", "beta note")
	env.put("c.md", "gamma note")

	previous := &storage.EmbeddingRecord{ID: "b.md", Vector: []float32{9, 9}, LastModified: time.UnixMilli(1000)}
	require.NoError(t, env.db.Embeddings().Put(ctx, previous))

	env.emb.errs = map[string]error{
		"beta": &types.ProviderError{Provider: "fake", StatusCode: 401, Kind: types.ErrAuth},
	}

	stats, err := env.m.RunBulk(ctx, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrAuth)
	assert.True(t, stats.Aborted)
	assert.Equal(t, 1, stats.Embedded)
	assert.Equal(t, 2, env.emb.count(), "no provider call after the auth failure")

	got, err := env.db.Embeddings().Get(ctx, "b.md")
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9}, got.Vector, "failed note keeps its previous record")
	assert.Equal(t, int64(1000), got.LastModified.UnixMilli())

	_, err = env.db.Embeddings().Get(ctx, "c.md")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Contains(t, env.m.Status().Notice, "API key")
}

func TestRunBulkTransientFailureSkips(t *testing.T) {
	env := setupMaintainer(t)
	ctx := context.Background()
	env.put("a.md", "alpha note")
	env.put("b.md", "beta note")
	env.put("c.md", "gamma note")

	env.emb.errs = map[string]error{
		"beta": &types.ProviderError{Provider: "fake", StatusCode: 503, Kind: types.ErrProviderUnavailable},
	}

	stats, err := env.m.RunBulk(ctx, false)
	require.NoError(t, err)
	assert.False(t, stats.Aborted)
	assert.Equal(t, 2, stats.Embedded)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "b.md")
	assert.ElementsMatch(t, []string{"a.md", "c.md"}, env.embeddingIDs(t))
}

func TestRunBulkEmptyNoteNotEmbedded(t *testing.T) {
	env := setupMaintainer(t)
	ctx := context.Background()
	env.put("empty.md", "---\ntags: [x]\n---\n   \n")

	stats, err := env.m.RunBulk(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Embedded)
	assert.Equal(t, 1, stats.DatesIndexed)
	assert.Equal(t, 0, env.emb.count())
}

func TestRunBulkInProgress(t *testing.T) {
	env := setupMaintainer(t)
	require.True(t, env.m.lock.TryAcquire())
	defer env.m.lock.Release()

	_, err := env.m.RunBulk(context.Background(), false)
	assert.ErrorIs(t, err, ErrIndexingInProgress)
	_, err = env.m.RebuildDates(context.Background())
	assert.ErrorIs(t, err, ErrIndexingInProgress)
}

// blockFirstCall makes the first provider call wait until release is closed.
func blockFirstCall(f *fakeEmbedder) (started, release chan struct{}) {
	started = make(chan struct{})
	release = make(chan struct{})
	var once sync.Once
	f.hook = func(string) {
		once.Do(func() {
			close(started)
			<-release
		})
	}
	return started, release
}

func TestRunBulkPauseResume(t *testing.T) {
	env := setupMaintainer(t)
	env.put("a.md", "alpha note")
	env.put("b.md", "beta note")
	env.put("c.md", "gamma note")
	started, release := blockFirstCall(env.emb)

	done := make(chan *Stats, 1)
	go func() {
		stats, err := env.m.RunBulk(context.Background(), false)
		assert.NoError(t, err)
		done <- stats
	}()

	<-started
	require.NoError(t, env.m.Pause())
	assert.Equal(t, StatePaused, env.m.Status().State)
	close(release)

	assert.Never(t, func() bool { return env.emb.count() > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	require.NoError(t, env.m.Resume())
	stats := <-done
	assert.Equal(t, 3, stats.Embedded)
	assert.False(t, stats.Stopped)
	assert.Equal(t, StateIdle, env.m.Status().State)
}

func TestRunBulkStop(t *testing.T) {
	env := setupMaintainer(t)
	env.put("a.md", "alpha note")
	env.put("b.md", "beta note")
	env.put("c.md", "gamma note")
	started, release := blockFirstCall(env.emb)

	done := make(chan *Stats, 1)
	go func() {
		stats, err := env.m.RunBulk(context.Background(), false)
		assert.NoError(t, err)
		done <- stats
	}()

	<-started
	require.NoError(t, env.m.Stop())
	close(release)

	stats := <-done
	assert.True(t, stats.Stopped)
	assert.Equal(t, 1, stats.Embedded, "in-flight call completes, remaining notes wait")
	assert.Equal(t, []string{"a.md"}, env.embeddingIDs(t))
	assert.ErrorIs(t, env.m.Stop(), ErrInvalidTransition)

	// The next run picks up where the stopped one left off.
	stats, err := env.m.RunBulk(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Embedded)
}

func TestEnsureIndexed(t *testing.T) {
	env := setupMaintainer(t)
	ctx := context.Background()
	env.put("a.md", "alpha note")

	stats, err := env.m.EnsureIndexed(ctx)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Embedded)

	stats, err = env.m.EnsureIndexed(ctx)
	require.NoError(t, err)
	assert.Nil(t, stats, "non-empty store is left alone")
}

func TestRebuildDates(t *testing.T) {
	env := setupMaintainer(t)
	env.put("a.md", "written 2024-01-05")
	env.put("Archive/b.md", "old")

	stats, err := env.m.RebuildDates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.False(t, env.m.lock.Held())
}

func TestOnIndexedHook(t *testing.T) {
	env := setupMaintainer(t)
	calls := 0
	env.m.onIndexed = func() { calls++ }
	env.put("a.md", "garden")

	_, err := env.m.RunBulk(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = env.m.RebuildDates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(nil)
	assert.Empty(t, n.Last())
	n.Notify("first")
	n.Notify("second")
	assert.Equal(t, "second", n.Last())
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, rate.Inf, newLimiter(0).Limit())
	assert.Equal(t, rate.Inf, newLimiter(-time.Second).Limit())
	assert.InDelta(t, 1.0, float64(newLimiter(time.Second).Limit()), 1e-9)
	assert.InDelta(t, 2.0, float64(newLimiter(500*time.Millisecond).Limit()), 1e-9)
}

func TestFatalClassification(t *testing.T) {
	env := setupMaintainer(t)
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"auth", &types.ProviderError{StatusCode: 403, Kind: types.ErrAuth}, true},
		{"no provider", embedder.ErrNoProviderEnabled, true},
		{"cancelled", context.Canceled, true},
		{"rate limited", &types.ProviderError{StatusCode: 429, Kind: types.ErrRateLimited}, false},
		{"read failure", errors.New("disk error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := &Stats{}
			assert.Equal(t, tt.fatal, env.m.fatal("a.md", "test", tt.err, stats))
		})
	}
}
