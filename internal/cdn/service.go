package cdn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
)

// Service coordinates the blob index, the vault and the filesystem to store
// and serve content-addressed blobs.
type Service struct {
	store       Store
	vault       Vault
	fsmgr       FilesystemManager
	logger      Logger
	clock       Clock
	idgen       IDGenerator
	operationID string
}

// NewService creates a Service. operationID tags ingest records so they can be
// matched with log lines from the same run.
func NewService(store Store, vault Vault, fsmgr FilesystemManager, logger Logger, clock Clock, idgen IDGenerator, operationID string) *Service {
	return &Service{
		store:       store,
		vault:       vault,
		fsmgr:       fsmgr,
		logger:      logger,
		clock:       clock,
		idgen:       idgen,
		operationID: operationID,
	}
}

// Put stores data as a blob served with ext.
//
// The bytes go to the vault first, then the index row is written. If the index
// write fails the orphaned vault object is harmless and a retry is idempotent.
func (s *Service) Put(ctx context.Context, data []byte, ext string) (*BlobRecord, error) {
	blob := NewBlob(data, ext)

	existing, err := s.store.FindBlobWithExtension(ctx, blob.ID, blob.Extension)
	if err != nil {
		return nil, fmt.Errorf("checking for existing blob: %w", err)
	}
	if existing != nil {
		s.logger.Debug("blob deduplicated", "hash", blob.ID, "extension", blob.Extension)
		return existing, nil
	}

	if err := s.vault.PutContent(ctx, blob.ID, bytes.NewReader(blob.Data), blob.Size); err != nil {
		return nil, fmt.Errorf("uploading to vault: %w", err)
	}

	rec := &BlobRecord{
		Hash:      blob.ID,
		Extension: blob.Extension,
		Size:      blob.Size,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.store.InsertBlob(ctx, rec); err != nil {
		return nil, fmt.Errorf("recording blob: %w", err)
	}

	s.logger.Info("blob stored", "hash", rec.Hash, "extension", rec.Extension, "size", rec.Size)
	return rec, nil
}

// Ingest stores every file under dir as a blob, skipping ignored files, and
// records the run as an ingest operation. The returned operation reflects the
// final status even when an error is returned.
func (s *Service) Ingest(ctx context.Context, dir string, recursive bool) (*IngestOperation, error) {
	root, err := s.fsmgr.Resolve(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving ingest directory: %w", err)
	}
	if !root.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIngestNotDirectory, root.String())
	}

	op := &IngestOperation{
		ID:          s.idgen.New(),
		OperationID: s.operationID,
		Source:      root.String(),
		StartedAt:   s.clock.Now().UTC(),
		Status:      StatusRunning,
	}
	if err := s.store.CreateIngestOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("recording ingest operation: %w", err)
	}

	count, ingestErr := s.ingestFiles(ctx, root, recursive)

	op.BlobCount = count
	op.Status = StatusSuccess
	if ingestErr != nil {
		op.Status = StatusError
	}
	finished := s.clock.Now().UTC()
	op.FinishedAt = &finished

	if err := s.store.FinishIngestOperation(ctx, op.ID, op.Status, op.BlobCount, finished); err != nil {
		return op, errors.Join(ingestErr, fmt.Errorf("finishing ingest operation: %w", err))
	}
	if ingestErr != nil {
		return op, ingestErr
	}

	s.logger.Info("ingest complete", "source", op.Source, "count", count)
	return op, nil
}

func (s *Service) ingestFiles(ctx context.Context, root *Path, recursive bool) (int, error) {
	files, err := s.fsmgr.FindFiles(root, recursive)
	if err != nil {
		return 0, fmt.Errorf("finding files: %w", err)
	}

	count := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		ignored, err := s.fsmgr.IsIgnored(f, root.String())
		if err != nil {
			return count, fmt.Errorf("checking ignore rules: %w", err)
		}
		if ignored {
			s.logger.Debug("file ignored", "path", f.String())
			continue
		}

		data, err := s.readFile(f)
		if err != nil {
			return count, err
		}
		rec, err := s.Put(ctx, data, filepath.Ext(f.String()))
		if err != nil {
			return count, fmt.Errorf("storing %s: %w", f.String(), err)
		}

		s.logger.Info("file ingested", "path", f.String(), "hash", rec.Hash)
		count++
	}
	return count, nil
}

func (s *Service) readFile(p *Path) ([]byte, error) {
	rc, err := s.fsmgr.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", p.String(), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.String(), err)
	}
	return data, nil
}

// Get returns the blob stored under hash and served as ext. ext is normalised
// before the lookup, so "jpg" finds a blob stored as "jpeg".
func (s *Service) Get(ctx context.Context, hash, ext string) (*Blob, error) {
	id, err := ParseID(hash)
	if err != nil {
		return nil, err
	}
	ext = NormalizeExtension(ext)

	rec, err := s.store.FindBlobWithExtension(ctx, id, ext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotFound, id, ext)
	}
	return s.fetch(ctx, rec)
}

// Lookup returns the first blob stored under hash regardless of extension.
func (s *Service) Lookup(ctx context.Context, hash string) (*Blob, error) {
	id, err := ParseID(hash)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.FindBlob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.fetch(ctx, rec)
}

func (s *Service) fetch(ctx context.Context, rec *BlobRecord) (*Blob, error) {
	var buf bytes.Buffer
	if err := s.vault.GetContent(ctx, rec.Hash, &buf); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("indexed blob missing from vault", "hash", rec.Hash)
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	return &Blob{
		ID:        rec.Hash,
		Extension: rec.Extension,
		Size:      int64(buf.Len()),
		Data:      buf.Bytes(),
	}, nil
}

// Resolve serves a "<hash>.<ext>" route segment. Errors wrap ErrMalformedID,
// ErrBackendUnavailable or ErrNotFound.
func (s *Service) Resolve(ctx context.Context, segment string) (*Blob, error) {
	id, ext, err := ParseSegment(segment)
	if err != nil {
		return nil, err
	}

	if err := s.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	return s.Get(ctx, id, ext)
}

// History returns the most recent ingest operations.
func (s *Service) History(ctx context.Context, limit int) ([]*IngestOperation, error) {
	ops, err := s.store.ListIngestOperations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing ingest operations: %w", err)
	}
	return ops, nil
}
