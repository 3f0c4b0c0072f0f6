// Package storage provides SQLite-based persistence for the note index.
//
// Two record kinds live in one database file:
//   - embeddings: one vector per note, with the note mtime it was computed from
//   - date_metadata: creation/modification times and dates mentioned in the body
//
// Both are keyed by the note's vault-relative path. Timestamps are stored as
// unix milliseconds; vectors as little-endian float32 blobs.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.vaultrag/index.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	err = db.Embeddings().Put(ctx, &storage.EmbeddingRecord{
//	    ID:           "inbox/idea.md",
//	    Vector:       vec,
//	    LastModified: info.ModTime(),
//	})
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags sqlite_cgo switches to github.com/mattn/go-sqlite3.
//
// # Migrations
//
// Schema changes are versioned with semantic versions and applied in order by
// ApplyMigrations when the database is opened.
package storage
