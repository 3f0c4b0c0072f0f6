package vault

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// NoteExt is the extension of files treated as notes.
const NoteExt = ".md"

// FSStore reads notes from a directory tree. Hidden files and directories
// (leading '.') are skipped, which keeps editor state such as .obsidian out.
type FSStore struct {
	root string
}

// NewFSStore returns a store rooted at dir.
func NewFSStore(dir string) (*FSStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path %s is not a directory", abs)
	}
	return &FSStore{root: abs}, nil
}

// Root returns the absolute vault directory.
func (s *FSStore) Root() string {
	return s.root
}

// List returns every note in the vault sorted by ID.
func (s *FSStore) List(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if p != s.root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsNote(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil // Removed between readdir and stat
		}
		docs = append(docs, s.document(p, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list vault: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Read returns the note's text.
func (s *FSStore) Read(ctx context.Context, id string) (string, error) {
	p, err := s.path(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", id, err)
	}
	return string(data), nil
}

// Stat returns the note's metadata.
func (s *FSStore) Stat(ctx context.Context, id string) (Document, error) {
	p, err := s.path(id)
	if err != nil {
		return Document{}, err
	}
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return Document{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to stat %s: %w", id, err)
	}
	return s.document(p, info), nil
}

// ID converts an absolute path inside the vault to a note ID.
func (s *FSStore) ID(absPath string) (string, bool) {
	rel, err := filepath.Rel(s.root, absPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (s *FSStore) path(id string) (string, error) {
	clean := path.Clean("/" + id)[1:]
	if clean == "" || clean != id {
		return "", fmt.Errorf("invalid note id %q", id)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// document builds a Document from file info. The portable stat API exposes
// no birth time, so CreatedAt starts as the mtime; front matter can override it.
func (s *FSStore) document(p string, info fs.FileInfo) Document {
	id, _ := s.ID(p)
	return Document{
		ID:        id,
		ModTime:   info.ModTime(),
		CreatedAt: info.ModTime(),
		Size:      info.Size(),
	}
}

// IsNote reports whether a file name has the note extension.
func IsNote(name string) bool {
	return strings.EqualFold(filepath.Ext(name), NoteExt)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// hasHiddenSegment reports whether any element of a slash path is hidden.
func hasHiddenSegment(id string) bool {
	for _, part := range strings.Split(id, "/") {
		if isHidden(part) {
			return true
		}
	}
	return false
}
