package vault

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and by callers embedding
// vaultrag without a filesystem vault.
type MemoryStore struct {
	mu    sync.RWMutex
	notes map[string]memoryNote
}

type memoryNote struct {
	doc  Document
	text string
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notes: make(map[string]memoryNote)}
}

// Put adds or replaces a note. CreatedAt is kept from the first Put.
func (m *MemoryStore) Put(id, text string, modTime time.Time) Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := modTime
	if prev, ok := m.notes[id]; ok {
		created = prev.doc.CreatedAt
	}
	doc := Document{ID: id, ModTime: modTime, CreatedAt: created, Size: int64(len(text))}
	m.notes[id] = memoryNote{doc: doc, text: text}
	return doc
}

// SetCreated overrides a note's creation time.
func (m *MemoryStore) SetCreated(id string, created time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notes[id]; ok {
		n.doc.CreatedAt = created
		m.notes[id] = n
	}
}

// Remove deletes a note.
func (m *MemoryStore) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notes, id)
}

func (m *MemoryStore) List(ctx context.Context) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs := make([]Document, 0, len(m.notes))
	for _, n := range m.notes {
		docs = append(docs, n.doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *MemoryStore) Read(ctx context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notes[id]
	if !ok {
		return "", fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return n.text, nil
}

func (m *MemoryStore) Stat(ctx context.Context, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notes[id]
	if !ok {
		return Document{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return n.doc, nil
}
