// Package vault is the filesystem-backed note store: it lists and reads
// markdown notes, parses their front matter and links, and reports edits.
package vault

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a note does not exist.
var ErrNotFound = errors.New("note not found")

// Document identifies a note and carries its filesystem times.
type Document struct {
	ID        string // Slash-separated path relative to the vault root
	ModTime   time.Time
	CreatedAt time.Time
	Size      int64
}

// Store is the read side of the note vault.
type Store interface {
	List(ctx context.Context) ([]Document, error)
	Read(ctx context.Context, id string) (string, error)
	Stat(ctx context.Context, id string) (Document, error)
}

// EventKind classifies a vault change.
type EventKind int

const (
	EventCreated EventKind = iota
	EventModified
	EventDeleted
)

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event reports a change to one note.
type Event struct {
	Kind EventKind
	ID   string
}

// IsExcluded reports whether id lies under one of the folder prefixes.
// "Archive" excludes "Archive/x.md" but not "Archived.md".
func IsExcluded(id string, folders []string) bool {
	for _, f := range folders {
		f = strings.Trim(f, "/")
		if f == "" {
			continue
		}
		if id == f || strings.HasPrefix(id, f+"/") {
			return true
		}
	}
	return false
}

// FilterExcluded drops documents under any excluded folder.
func FilterExcluded(docs []Document, folders []string) []Document {
	if len(folders) == 0 {
		return docs
	}
	kept := docs[:0:0]
	for _, d := range docs {
		if !IsExcluded(d.ID, folders) {
			kept = append(kept, d)
		}
	}
	return kept
}
