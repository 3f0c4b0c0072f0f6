// Package indexer keeps the embedding store and the date index in step with
// the vault.
//
// # Basic Usage
//
//	m := indexer.New(indexer.Deps{
//	    Docs:       store,
//	    Embeddings: db.Embeddings(),
//	    Dates:      dates,
//	    Embedder:   handle,
//	}, indexer.Config{ExcludedFolders: []string{"Templates"}})
//	defer m.Close()
//
//	stats, err := m.RunBulk(ctx, false)
//
// # Passes
//
// A bulk pass lists every note, removes records whose note is gone or
// excluded, then walks the remaining notes one at a time. An incremental pass
// processes only the notes named by change events. Both passes use the same
// per-note step:
//
//  1. Re-index dates when the note changed in a later second than it was last
//     date-indexed.
//  2. Re-embed when there is no embedding record or the note's mtime is later
//     than the recorded one (millisecond compare).
//
// The embedding record is written only after the provider call succeeds, so a
// failed call leaves the previous record and its timestamp untouched.
//
// # Concurrency
//
// Only one pass runs at a time. A scheduled bulk trigger that finds a pass
// running is dropped with ErrIndexingInProgress. Change events are collected
// in a queue and flushed after Config.Debounce of quiet; a flush that finds a
// pass running is deferred until that pass ends.
//
// Incremental passes wait on a rate limiter before every provider call. Bulk
// passes do not and rely on the provider's retry with backoff.
//
// # Control
//
// The maintainer is an explicit state machine:
//
//	Idle -> Running(bulk|incremental) -> Idle
//	Running <-> Paused
//
// Pause, Resume and Stop are checked between documents. A stop never aborts an
// in-flight provider call; it only prevents the loop from continuing.
//
// # Errors
//
// Authentication failures abort the batch and raise a notice through the
// Notifier. Any other per-note failure is logged with the note id and skipped.
package indexer
