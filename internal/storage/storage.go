package storage

import (
	"context"
	"time"
)

// EmbeddingRecord is the persisted embedding of one note.
type EmbeddingRecord struct {
	ID           string
	Vector       []float32
	LastModified time.Time // Note mtime when the vector was computed
}

// DateRecord is the persisted date metadata of one note.
type DateRecord struct {
	ID           string
	CreatedAt    time.Time
	ModifiedAt   time.Time
	ContentDates []time.Time // Calendar days mentioned in the body, ascending
	LastIndexed  time.Time
}

// EmbeddingStore persists note embeddings keyed by note ID.
type EmbeddingStore interface {
	Put(ctx context.Context, record *EmbeddingRecord) error
	Get(ctx context.Context, id string) (*EmbeddingRecord, error)
	GetAll(ctx context.Context) ([]*EmbeddingRecord, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// DateStore persists date metadata keyed by note ID.
type DateStore interface {
	Put(ctx context.Context, record *DateRecord) error
	Get(ctx context.Context, id string) (*DateRecord, error)
	GetAll(ctx context.Context) ([]*DateRecord, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// Status summarises the index contents.
type Status struct {
	Embeddings  int
	DateRecords int
	LastUpdated time.Time
	SizeBytes   int64
	BuildMode   string
}
