package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"helix/internal/cdn"
	"helix/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements cdn.Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens a SQLite blob index.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenConnection opens and configures a SQLite database connection.
// path can be a file path or ":memory:" for an in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Ping checks the connection is usable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// Blob operations

func (s *SQLiteStore) InsertBlob(ctx context.Context, rec *cdn.BlobRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (hash, extension, size, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (hash, extension) DO NOTHING`,
		rec.Hash, rec.Extension, rec.Size, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting blob: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FindBlob(ctx context.Context, hash string) (*cdn.BlobRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hash, extension, size, created_at FROM blobs
		 WHERE hash = ? ORDER BY created_at, extension LIMIT 1`,
		hash,
	)
	rec, err := scanBlob(row)
	if err != nil {
		return nil, fmt.Errorf("finding blob by hash: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) FindBlobWithExtension(ctx context.Context, hash, ext string) (*cdn.BlobRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hash, extension, size, created_at FROM blobs
		 WHERE hash = ? AND extension = ?`,
		hash, ext,
	)
	rec, err := scanBlob(row)
	if err != nil {
		return nil, fmt.Errorf("finding blob by hash and extension: %w", err)
	}
	return rec, nil
}

// scanBlob returns nil, nil when the row does not exist.
func scanBlob(row *sql.Row) (*cdn.BlobRecord, error) {
	var rec cdn.BlobRecord
	if err := row.Scan(&rec.Hash, &rec.Extension, &rec.Size, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

// Ingest operations

func (s *SQLiteStore) CreateIngestOperation(ctx context.Context, op *cdn.IngestOperation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_operations (id, operation_id, source, started_at, status, blob_count)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		op.ID, op.OperationID, op.Source, op.StartedAt.UTC(), op.Status, op.BlobCount,
	)
	if err != nil {
		return fmt.Errorf("creating ingest operation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FinishIngestOperation(ctx context.Context, id, status string, blobCount int, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_operations SET status = ?, blob_count = ?, finished_at = ? WHERE id = ?`,
		status, blobCount, finishedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing ingest operation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finishing ingest operation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finishing ingest operation: no operation with id %s", id)
	}
	return nil
}

// ListIngestOperations returns the newest operations first. A limit of zero
// or less returns every operation.
func (s *SQLiteStore) ListIngestOperations(ctx context.Context, limit int) ([]*cdn.IngestOperation, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation_id, source, started_at, finished_at, status, blob_count
		 FROM ingest_operations ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing ingest operations: %w", err)
	}
	defer rows.Close()

	var ops []*cdn.IngestOperation
	for rows.Next() {
		var op cdn.IngestOperation
		var finished sql.NullTime
		if err := rows.Scan(&op.ID, &op.OperationID, &op.Source, &op.StartedAt, &finished, &op.Status, &op.BlobCount); err != nil {
			return nil, fmt.Errorf("scanning ingest operation: %w", err)
		}
		op.StartedAt = op.StartedAt.UTC()
		if finished.Valid {
			t := finished.Time.UTC()
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing ingest operations: %w", err)
	}
	return ops, nil
}

// Path returns the database file path, or "" when wrapping an existing connection.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Migrate applies pending schema migrations.
func (s *SQLiteStore) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteStore implements cdn.Store interface
var _ cdn.Store = (*SQLiteStore)(nil)
