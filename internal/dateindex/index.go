// Package dateindex maintains per-note date metadata and answers date-range
// questions about the vault.
//
// For every note it records the creation time (front matter "created" or
// "date" when present, otherwise the filesystem), the modification time and
// every calendar date written in the body. FilterByDate matches a note when
// any of those falls inside the requested range.
//
// Staleness is judged at whole-second granularity: the record's LastIndexed is
// a wall-clock time taken after the note was read, so sub-second differences
// against the note's mtime carry no information.
package dateindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dshills/vaultrag/internal/clock"
	"github.com/dshills/vaultrag/internal/storage"
	"github.com/dshills/vaultrag/internal/vault"
)

// Options configures an Index.
type Options struct {
	Clock           clock.Clock
	Location        *time.Location // Local time zone for relative ranges and content dates
	ExcludedFolders []string
	Logger          *slog.Logger
}

// Index is the date index over a vault.
type Index struct {
	store    storage.DateStore
	docs     vault.Store
	clock    clock.Clock
	loc      *time.Location
	excluded []string
	logger   *slog.Logger
}

// RebuildStats summarises a rebuild.
type RebuildStats struct {
	Indexed  int
	Failed   int
	Duration time.Duration
}

// New creates an Index persisting to store and reading notes from docs.
func New(store storage.DateStore, docs vault.Store, opts Options) *Index {
	idx := &Index{
		store:    store,
		docs:     docs,
		clock:    opts.Clock,
		loc:      opts.Location,
		excluded: opts.ExcludedFolders,
		logger:   opts.Logger,
	}
	if idx.clock == nil {
		idx.clock = clock.Real{}
	}
	if idx.loc == nil {
		idx.loc = time.Local
	}
	if idx.logger == nil {
		idx.logger = slog.Default()
	}
	return idx
}

// Location returns the time zone used for relative ranges.
func (x *Index) Location() *time.Location {
	return x.loc
}

// Now returns the index clock's current time in its location.
func (x *Index) Now() time.Time {
	return x.clock.Now().In(x.loc)
}

// IndexDocument reads doc and stores its date record.
func (x *Index) IndexDocument(ctx context.Context, doc vault.Document) error {
	text, err := x.docs.Read(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", doc.ID, err)
	}

	fm, _ := vault.ParseFrontMatter(text, x.loc)
	created := doc.CreatedAt
	if !fm.Created.IsZero() {
		created = fm.Created
	}

	record := &storage.DateRecord{
		ID:           doc.ID,
		CreatedAt:    created,
		ModifiedAt:   doc.ModTime,
		ContentDates: ExtractDates(text, x.loc),
		LastIndexed:  x.clock.Now(),
	}
	if err := x.store.Put(ctx, record); err != nil {
		return fmt.Errorf("failed to index dates for %s: %w", doc.ID, err)
	}
	return nil
}

// NeedsIndexing reports whether doc has no record or was modified in a later
// second than it was last indexed.
func (x *Index) NeedsIndexing(ctx context.Context, doc vault.Document) (bool, error) {
	record, err := x.store.Get(ctx, doc.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return doc.ModTime.Unix() > record.LastIndexed.Unix(), nil
}

// Get returns the stored record for id.
func (x *Index) Get(ctx context.Context, id string) (*storage.DateRecord, error) {
	return x.store.Get(ctx, id)
}

// FilterByDate returns the documents with a creation, modification or
// content date inside the filter's range. Documents without a record are
// judged on their own timestamps. Returned documents carry the recorded
// creation time.
func (x *Index) FilterByDate(ctx context.Context, docs []vault.Document, filter Filter) ([]vault.Document, error) {
	r, err := filter.Resolve(x.clock.Now(), x.loc)
	if err != nil {
		return nil, err
	}

	records, err := x.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load date records: %w", err)
	}
	byID := make(map[string]*storage.DateRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	var matched []vault.Document
	for _, doc := range docs {
		rec, ok := byID[doc.ID]
		if !ok {
			if r.Contains(doc.CreatedAt) || r.Contains(doc.ModTime) {
				matched = append(matched, doc)
			}
			continue
		}
		if recordMatches(rec, r) {
			doc.CreatedAt = rec.CreatedAt
			matched = append(matched, doc)
		}
	}
	return matched, nil
}

func recordMatches(rec *storage.DateRecord, r Range) bool {
	if r.Contains(rec.CreatedAt) || r.Contains(rec.ModifiedAt) {
		return true
	}
	for _, d := range rec.ContentDates {
		if r.Contains(d) {
			return true
		}
	}
	return false
}

// RebuildIndex clears every record and re-indexes all non-excluded notes one
// at a time. A note that fails is logged and skipped.
func (x *Index) RebuildIndex(ctx context.Context) (*RebuildStats, error) {
	start := time.Now()
	stats := &RebuildStats{}

	if err := x.store.Clear(ctx); err != nil {
		return nil, err
	}
	docs, err := x.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	for _, doc := range vault.FilterExcluded(docs, x.excluded) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := x.IndexDocument(ctx, doc); err != nil {
			stats.Failed++
			x.logger.Warn("date indexing failed", "id", doc.ID, "op", "rebuild", "error", err)
			continue
		}
		stats.Indexed++
	}

	stats.Duration = time.Since(start)
	x.logger.Info("date index rebuilt", "indexed", stats.Indexed, "failed", stats.Failed, "duration", stats.Duration)
	return stats, nil
}

// DeleteNote removes the record for id.
func (x *Index) DeleteNote(ctx context.Context, id string) error {
	return x.store.Delete(ctx, id)
}

// IDs lists every note id that has a date record.
func (x *Index) IDs(ctx context.Context) ([]string, error) {
	records, err := x.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load date records: %w", err)
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	return ids, nil
}
