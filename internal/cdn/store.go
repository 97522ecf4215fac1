package cdn

import (
	"context"
	"time"
)

// Ingest operation statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// IngestOperation records one directory ingest.
type IngestOperation struct {
	ID          string
	OperationID string
	Source      string
	StartedAt   time.Time
	FinishedAt  *time.Time
	Status      string
	BlobCount   int
}

// Store is the blob index. Lookups that match nothing return nil, nil.
type Store interface {
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// InsertBlob records a blob. Inserting an existing hash and extension
	// pair is a no-op.
	InsertBlob(ctx context.Context, rec *BlobRecord) error

	// FindBlob returns the oldest record for hash with any extension.
	FindBlob(ctx context.Context, hash string) (*BlobRecord, error)

	// FindBlobWithExtension returns the record for hash served as ext.
	FindBlobWithExtension(ctx context.Context, hash, ext string) (*BlobRecord, error)

	CreateIngestOperation(ctx context.Context, op *IngestOperation) error
	FinishIngestOperation(ctx context.Context, id, status string, blobCount int, finishedAt time.Time) error

	// ListIngestOperations returns the most recent operations first.
	ListIngestOperations(ctx context.Context, limit int) ([]*IngestOperation, error)

	Close() error
}
