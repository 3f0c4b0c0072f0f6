package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dshills/vaultrag/internal/clock"
	"github.com/dshills/vaultrag/internal/dateindex"
	"github.com/dshills/vaultrag/internal/embedder"
	"github.com/dshills/vaultrag/internal/storage"
	"github.com/dshills/vaultrag/internal/vault"
	"github.com/dshills/vaultrag/pkg/types"
)

// ErrIndexingInProgress is returned when a pass is requested while another
// one holds the lock.
var ErrIndexingInProgress = errors.New("indexing already in progress")

const (
	DefaultDebounce        = 5 * time.Second
	DefaultMinCallInterval = time.Second
	DefaultSchedule        = "@every 1h"
)

// Config contains configuration for the maintainer
type Config struct {
	ExcludedFolders []string      // Folder prefixes never indexed
	Debounce        time.Duration // Quiet period before a change batch is processed (default: 5s)
	MinCallInterval time.Duration // Spacing between provider calls in incremental passes (default: 1s, negative disables)
	Schedule        string        // Cron spec for the timer-driven bulk pass (default: "@every 1h")
}

// Deps are the collaborators the maintainer writes through.
type Deps struct {
	Docs       vault.Store
	Embeddings storage.EmbeddingStore
	Dates      *dateindex.Index
	Embedder   embedder.Embedder
	Clock      clock.Clock
	Notifier   Notifier
	Logger     *slog.Logger

	// OnIndexed runs after every pass and date rebuild, e.g. to drop cached
	// search responses.
	OnIndexed func()
}

// Stats contains statistics about one indexing pass
type Stats struct {
	RunID        string
	Mode         Mode
	StartedAt    time.Time
	Duration     time.Duration
	Embedded     int
	DatesIndexed int
	Skipped      int
	Failed       int
	Removed      int
	Stopped      bool
	Aborted      bool
	Errors       []string
}

// Status is a point-in-time view of the maintainer.
type Status struct {
	State   State
	Mode    Mode
	Pending int
	LastRun *Stats
	Notice  string
}

// Maintainer runs bulk and incremental indexing passes.
type Maintainer struct {
	docs       vault.Store
	embeddings storage.EmbeddingStore
	dates      *dateindex.Index
	embedder   embedder.Embedder
	clock      clock.Clock
	notifier   Notifier
	logger     *slog.Logger
	cfg        Config
	limiter    *rate.Limiter
	onIndexed  func()

	lock IndexLock
	ctrl controller

	mu       sync.Mutex
	pending  map[string]struct{}
	timer    clock.Timer
	deferred bool
	lastRun  *Stats
	notice   string

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Maintainer. Zero Config fields take their defaults.
func New(deps Deps, cfg Config) *Maintainer {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MinCallInterval == 0 {
		cfg.MinCallInterval = DefaultMinCallInterval
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = NewLogNotifier(deps.Logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Maintainer{
		docs:       deps.Docs,
		embeddings: deps.Embeddings,
		dates:      deps.Dates,
		embedder:   deps.Embedder,
		clock:      deps.Clock,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
		cfg:        cfg,
		limiter:    newLimiter(cfg.MinCallInterval),
		onIndexed:  deps.OnIndexed,
		pending:    make(map[string]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Close cancels queued work and any pass started from the change queue.
func (m *Maintainer) Close() error {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()
	m.cancel()
	return nil
}

// Pause suspends the running pass at the next document boundary.
func (m *Maintainer) Pause() error { return m.ctrl.pause() }

// Resume continues a paused pass.
func (m *Maintainer) Resume() error { return m.ctrl.resume() }

// Stop ends the running pass at the next document boundary. Documents not yet
// reached are left for the next run.
func (m *Maintainer) Stop() error { return m.ctrl.requestStop() }

// Status reports the run state, queued changes, last pass and last notice.
func (m *Maintainer) Status() Status {
	state, mode := m.ctrl.snapshot()
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		State:   state,
		Mode:    mode,
		Pending: len(m.pending),
		LastRun: m.lastRun,
		Notice:  m.notice,
	}
}

// RunBulk runs a full pass over the vault. With force set, every embedding is
// discarded first so all notes are re-embedded.
func (m *Maintainer) RunBulk(ctx context.Context, force bool) (*Stats, error) {
	if !m.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	stats, err := m.run(ctx, ModeBulk, func(ctx context.Context, stats *Stats) error {
		return m.bulk(ctx, force, stats)
	})
	m.lock.Release()

	m.flushDeferred()
	return stats, err
}

// EnsureIndexed runs a bulk pass when the embedding store is empty.
func (m *Maintainer) EnsureIndexed(ctx context.Context) (*Stats, error) {
	n, err := m.embeddings.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count embeddings: %w", err)
	}
	if n > 0 {
		return nil, nil
	}
	m.logger.Info("embedding store empty, starting bulk pass")
	return m.RunBulk(ctx, false)
}

// RebuildDates clears and rebuilds the date index under the indexing lock.
func (m *Maintainer) RebuildDates(ctx context.Context) (*dateindex.RebuildStats, error) {
	if !m.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer m.lock.Release()
	defer m.indexed()
	return m.dates.RebuildIndex(ctx)
}

func (m *Maintainer) indexed() {
	if m.onIndexed != nil {
		m.onIndexed()
	}
}

// run wraps a pass with state transitions, a run id and bookkeeping. The
// caller holds the lock.
func (m *Maintainer) run(ctx context.Context, mode Mode, pass func(context.Context, *Stats) error) (*Stats, error) {
	if err := m.ctrl.begin(mode); err != nil {
		return nil, err
	}
	stats := &Stats{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: m.clock.Now(),
	}
	start := time.Now()
	m.logger.Info("indexing started", "run_id", stats.RunID, "mode", mode)

	err := pass(ctx, stats)

	m.ctrl.finish()
	stats.Duration = time.Since(start)

	m.mu.Lock()
	m.lastRun = stats
	m.mu.Unlock()
	m.indexed()

	m.logger.Info("indexing finished",
		"run_id", stats.RunID,
		"mode", mode,
		"embedded", stats.Embedded,
		"dates", stats.DatesIndexed,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"removed", stats.Removed,
		"stopped", stats.Stopped,
		"aborted", stats.Aborted,
		"duration", stats.Duration,
	)
	return stats, err
}

func (m *Maintainer) bulk(ctx context.Context, force bool, stats *Stats) error {
	docs, err := m.docs.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list notes: %w", err)
	}
	docs = vault.FilterExcluded(docs, m.cfg.ExcludedFolders)

	live := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		live[d.ID] = struct{}{}
	}

	if force {
		if err := m.embeddings.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear embeddings: %w", err)
		}
	}
	if err := m.removeOrphans(ctx, live, stats); err != nil {
		return err
	}

	for _, doc := range docs {
		stop, err := m.ctrl.checkpoint(ctx)
		if err != nil {
			return err
		}
		if stop {
			stats.Stopped = true
			m.logger.Info("indexing stopped", "run_id", stats.RunID)
			return nil
		}

		if err := m.processDocument(ctx, doc, false, stats); err != nil {
			if m.fatal(doc.ID, "bulk", err, stats) {
				return err
			}
		}
	}
	return nil
}

// removeOrphans deletes embedding and date records with no live note.
func (m *Maintainer) removeOrphans(ctx context.Context, live map[string]struct{}, stats *Stats) error {
	records, err := m.embeddings.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load embeddings: %w", err)
	}
	for _, rec := range records {
		if _, ok := live[rec.ID]; ok {
			continue
		}
		if err := m.embeddings.Delete(ctx, rec.ID); err != nil {
			return err
		}
		stats.Removed++
		m.logger.Debug("removed orphan embedding", "id", rec.ID)
	}

	ids, err := m.dates.IDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := live[id]; ok {
			continue
		}
		if err := m.dates.DeleteNote(ctx, id); err != nil {
			return fmt.Errorf("failed to delete date record %s: %w", id, err)
		}
		m.logger.Debug("removed orphan date record", "id", id)
	}
	return nil
}

// processDocument brings both indexes up to date for doc. With spaced set the
// provider call waits on the rate limiter first.
func (m *Maintainer) processDocument(ctx context.Context, doc vault.Document, spaced bool, stats *Stats) error {
	var dateErr error
	datesStale, err := m.dates.NeedsIndexing(ctx, doc)
	switch {
	case err != nil:
		dateErr = fmt.Errorf("failed to check date record: %w", err)
	case datesStale:
		if dateErr = m.dates.IndexDocument(ctx, doc); dateErr == nil {
			stats.DatesIndexed++
		}
	}

	embedded, err := m.embedDocument(ctx, doc, spaced)
	if err != nil {
		return errors.Join(dateErr, err)
	}
	if embedded {
		stats.Embedded++
	} else if !datesStale {
		stats.Skipped++
	}
	return dateErr
}

// embeddingStale reports whether doc has no record or an mtime later than the
// recorded one, compared in milliseconds.
func (m *Maintainer) embeddingStale(ctx context.Context, doc vault.Document) (bool, error) {
	rec, err := m.embeddings.Get(ctx, doc.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load embedding: %w", err)
	}
	return doc.ModTime.UnixMilli() > rec.LastModified.UnixMilli(), nil
}

func (m *Maintainer) embedDocument(ctx context.Context, doc vault.Document, spaced bool) (bool, error) {
	stale, err := m.embeddingStale(ctx, doc)
	if err != nil || !stale {
		return false, err
	}

	text, err := m.docs.Read(ctx, doc.ID)
	if err != nil {
		return false, fmt.Errorf("failed to read note: %w", err)
	}
	_, body := vault.ParseFrontMatter(text, m.dates.Location())
	if strings.TrimSpace(body) == "" {
		// Nothing to embed; drop any vector left from earlier content.
		if err := m.embeddings.Delete(ctx, doc.ID); err != nil {
			return false, err
		}
		return false, nil
	}

	if spaced {
		if err := m.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}
	vector, err := embedder.Vector(ctx, m.embedder, body)
	if err != nil {
		return false, fmt.Errorf("failed to embed note: %w", err)
	}

	record := &storage.EmbeddingRecord{
		ID:           doc.ID,
		Vector:       vector,
		LastModified: doc.ModTime,
	}
	if err := m.embeddings.Put(ctx, record); err != nil {
		return false, fmt.Errorf("failed to store embedding: %w", err)
	}
	return true, nil
}

// fatal records a per-document failure and reports whether the batch must
// stop. Rejected credentials and cancellation end the batch; anything else is
// logged and skipped.
func (m *Maintainer) fatal(id, op string, err error, stats *Stats) bool {
	switch {
	case errors.Is(err, types.ErrAuth), errors.Is(err, embedder.ErrNoProviderEnabled):
		stats.Aborted = true
		m.logger.Error("indexing aborted", "run_id", stats.RunID, "id", id, "op", op, "error", err)
		m.notify("Embedding provider rejected the request: check the API key. Indexing stopped.")
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		stats.Aborted = true
		return true
	}

	stats.Failed++
	stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", id, err))
	m.logger.Warn("indexing failed", "run_id", stats.RunID, "id", id, "op", op, "error", err)
	if errors.Is(err, types.ErrRateLimited) {
		m.notify("Embedding provider is rate limiting requests; some notes were skipped.")
	}
	return false
}

func (m *Maintainer) notify(message string) {
	m.mu.Lock()
	m.notice = message
	m.mu.Unlock()
	m.notifier.Notify(message)
}
