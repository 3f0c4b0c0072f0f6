package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch is returned when a vector's size disagrees with its blob
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// SQLiteStorage owns the database handle shared by the embedding and date stores.
type SQLiteStorage struct {
	db    *sql.DB
	embed *sqliteEmbeddingStore
	dates *sqliteDateStore
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// One connection: SQLite has a single writer, and :memory: databases are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStorage opens (or creates) the index database at dbPath and applies migrations.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{
		db:    db,
		embed: &sqliteEmbeddingStore{db: db},
		dates: &sqliteDateStore{db: db},
	}, nil
}

// Embeddings returns the embedding store backed by this database.
func (s *SQLiteStorage) Embeddings() EmbeddingStore { return s.embed }

// Dates returns the date metadata store backed by this database.
func (s *SQLiteStorage) Dates() DateStore { return s.dates }

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// GetStatus reports record counts and database size.
func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{BuildMode: BuildMode}

	var err error
	if status.Embeddings, err = s.embed.Count(ctx); err != nil {
		return nil, err
	}
	if status.DateRecords, err = s.dates.Count(ctx); err != nil {
		return nil, err
	}

	var lastUpdated sql.NullInt64
	err = s.db.QueryRowContext(ctx, "SELECT MAX(updated_at) FROM embeddings").Scan(&lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to read last update: %w", err)
	}
	if lastUpdated.Valid {
		status.LastUpdated = time.UnixMilli(lastUpdated.Int64)
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeBytes = pageCount * pageSize
	}

	return status, nil
}

// Embedding operations

type sqliteEmbeddingStore struct {
	db *sql.DB
}

func (s *sqliteEmbeddingStore) Put(ctx context.Context, record *EmbeddingRecord) error {
	if record.ID == "" {
		return fmt.Errorf("failed to put embedding: empty id")
	}
	query := `
		INSERT INTO embeddings (id, vector, dimension, last_modified, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			last_modified = excluded.last_modified,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		record.ID, serializeVector(record.Vector), len(record.Vector),
		record.LastModified.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put embedding %s: %w", record.ID, err)
	}
	return nil
}

func (s *sqliteEmbeddingStore) Get(ctx context.Context, id string) (*EmbeddingRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, vector, dimension, last_modified FROM embeddings WHERE id = ?", id)
	record, err := scanEmbedding(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding %s: %w", id, err)
	}
	return record, nil
}

func (s *sqliteEmbeddingStore) GetAll(ctx context.Context) ([]*EmbeddingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, vector, dimension, last_modified FROM embeddings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*EmbeddingRecord
	for rows.Next() {
		record, err := scanEmbedding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *sqliteEmbeddingStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM embeddings WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete embedding %s: %w", id, err)
	}
	return nil
}

func (s *sqliteEmbeddingStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM embeddings"); err != nil {
		return fmt.Errorf("failed to clear embeddings: %w", err)
	}
	return nil
}

func (s *sqliteEmbeddingStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEmbedding(row rowScanner) (*EmbeddingRecord, error) {
	var (
		record    EmbeddingRecord
		blob      []byte
		dimension int
		modified  int64
	)
	if err := row.Scan(&record.ID, &blob, &dimension, &modified); err != nil {
		return nil, err
	}
	record.Vector = deserializeVector(blob)
	if len(record.Vector) != dimension {
		return nil, fmt.Errorf("%s: %w", record.ID, ErrDimensionMismatch)
	}
	record.LastModified = time.UnixMilli(modified)
	return &record, nil
}

// Date metadata operations

type sqliteDateStore struct {
	db *sql.DB
}

func (s *sqliteDateStore) Put(ctx context.Context, record *DateRecord) error {
	if record.ID == "" {
		return fmt.Errorf("failed to put date record: empty id")
	}
	days := make([]int64, len(record.ContentDates))
	for i, d := range record.ContentDates {
		days[i] = d.UnixMilli()
	}
	encoded, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("failed to encode content dates: %w", err)
	}

	query := `
		INSERT INTO date_metadata (id, created_at, modified_at, content_dates, last_indexed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			modified_at = excluded.modified_at,
			content_dates = excluded.content_dates,
			last_indexed = excluded.last_indexed
	`
	_, err = s.db.ExecContext(ctx, query, record.ID,
		record.CreatedAt.UnixMilli(), record.ModifiedAt.UnixMilli(),
		string(encoded), record.LastIndexed.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put date record %s: %w", record.ID, err)
	}
	return nil
}

func (s *sqliteDateStore) Get(ctx context.Context, id string) (*DateRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, created_at, modified_at, content_dates, last_indexed FROM date_metadata WHERE id = ?", id)
	record, err := scanDateRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get date record %s: %w", id, err)
	}
	return record, nil
}

func (s *sqliteDateStore) GetAll(ctx context.Context) ([]*DateRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created_at, modified_at, content_dates, last_indexed FROM date_metadata ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list date records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*DateRecord
	for rows.Next() {
		record, err := scanDateRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan date record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *sqliteDateStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM date_metadata WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete date record %s: %w", id, err)
	}
	return nil
}

func (s *sqliteDateStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM date_metadata"); err != nil {
		return fmt.Errorf("failed to clear date records: %w", err)
	}
	return nil
}

func (s *sqliteDateStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM date_metadata").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count date records: %w", err)
	}
	return n, nil
}

func scanDateRecord(row rowScanner) (*DateRecord, error) {
	var (
		record                     DateRecord
		created, modified, indexed int64
		encoded                    string
	)
	if err := row.Scan(&record.ID, &created, &modified, &encoded, &indexed); err != nil {
		return nil, err
	}

	var days []int64
	if err := json.Unmarshal([]byte(encoded), &days); err != nil {
		return nil, fmt.Errorf("invalid content dates for %s: %w", record.ID, err)
	}
	record.ContentDates = make([]time.Time, len(days))
	for i, d := range days {
		record.ContentDates[i] = time.UnixMilli(d)
	}
	record.CreatedAt = time.UnixMilli(created)
	record.ModifiedAt = time.UnixMilli(modified)
	record.LastIndexed = time.UnixMilli(indexed)
	return &record, nil
}
