// Package app wires configuration, the archive and the CDN stack together for
// the CLI.
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tidwall/jsonc"

	"helix/internal/archive"
	"helix/internal/cdn"
	"helix/internal/config"
	"helix/internal/database"
	"helix/internal/encryption"
	"helix/internal/fieldmask"
	helixfs "helix/internal/fs"
	"helix/internal/server"
	"helix/internal/vault"
)

// BackupMetadataName is the vault metadata item holding encrypted archive backups.
const BackupMetadataName = "archive"

var (
	// ErrArchiveExists indicates an operation would overwrite a readable archive.
	ErrArchiveExists = errors.New("archive already exists (use --force to overwrite)")

	// ErrArchiveNotSaved indicates the archive has never been written to disk.
	ErrArchiveNotSaved = errors.New("archive has not been saved yet (run `helix archive init`)")

	// ErrNoBackup indicates the vault holds no archive backup for this host.
	ErrNoBackup = errors.New("no archive backup in vault")

	// ErrNoIngestDir indicates neither an argument nor the config named a directory.
	ErrNoIngestDir = errors.New("no ingest directory given and ingest.dir not configured")
)

// HelixApp is the application layer between the CLI and the domain packages.
// The archive is loaded eagerly; the blob index, vault and encryptor are
// built on first use so archive-only commands never touch them.
// The caller must call Close when done.
type HelixApp struct {
	cfg     *config.Config
	op      *Operation
	logger  *slog.Logger
	logFile *os.File
	now     func() time.Time

	archive *archive.Archive
	origin  archive.Origin

	store     *database.SQLiteStore
	vault     cdn.Vault
	encryptor encryption.Encryptor
	service   *cdn.Service
}

// NewHelixApp creates a HelixApp from the given config. operation names the
// CLI command being run (e.g. "cdn ingest").
func NewHelixApp(cfg *config.Config, operation string) (*HelixApp, error) {
	op := NewOperation(operation, time.Now())

	logger, logFile, err := newLogger(cfg.LogDir, op.ID, slog.LevelInfo)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &HelixApp{
		cfg:     cfg,
		op:      op,
		logger:  logger,
		logFile: logFile,
		now:     time.Now,
	}

	if err := a.loadArchive(); err != nil {
		logFile.Close()
		return nil, err
	}
	return a, nil
}

func archiveOptions(cfg config.ArchiveConfig) archive.Options {
	opts := archive.Options{AutoSave: cfg.AutoSave, Recovery: archive.AbortOnCorruptBody}
	if cfg.ResetCorruptBody {
		opts.Recovery = archive.ResetCorruptBody
	}
	return opts
}

// loadArchive loads the configured archive, falling back to a fresh one. A
// file that exists but cannot be loaded is copied aside before anything can
// overwrite it.
func (a *HelixApp) loadArchive() error {
	path := a.cfg.Archive.Path
	arc, origin, err := archive.TryLoad(path, a.cfg.Archive.Version, archiveOptions(a.cfg.Archive))

	switch origin {
	case archive.OriginLoaded:
		if arc.Header.Version != a.cfg.Archive.Version {
			a.logger.Warn("archive version differs from config", "stored", arc.Header.Version, "expected", a.cfg.Archive.Version)
		}
	case archive.OriginFresh:
		a.logger.Debug("no archive on disk", "path", path)
	case archive.OriginBodyReset:
		a.logger.Warn("archive document unreadable, reset to empty object", "path", path, "error", err)
	case archive.OriginCorrupt:
		preserved, perr := preserveCorrupt(path, a.now())
		if perr != nil {
			return fmt.Errorf("preserving corrupt archive: %w", errors.Join(err, perr))
		}
		a.logger.Warn("archive unreadable, starting fresh", "path", path, "preserved", preserved, "error", err)
	}

	a.archive = arc
	a.origin = origin
	return nil
}

// preserveCorrupt copies path to "<path>.corrupt-<UTC timestamp>".
func preserveCorrupt(path string, now time.Time) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	dest := path + ".corrupt-" + now.UTC().Format("20060102T150405Z")
	if err := os.WriteFile(dest, data, 0600); err != nil {
		return "", err
	}
	return dest, nil
}

// Config returns the configuration the app was built from.
func (a *HelixApp) Config() *config.Config {
	return a.cfg
}

// Operation returns the operation tracking this invocation.
func (a *HelixApp) Operation() *Operation {
	return a.op
}

// Archive returns the loaded (or fresh) archive.
func (a *HelixApp) Archive() *archive.Archive {
	return a.archive
}

// ArchiveOrigin reports how the archive was obtained at startup.
func (a *HelixApp) ArchiveOrigin() archive.Origin {
	return a.origin
}

// InitArchive writes a fresh archive. A readable archive is only replaced
// when force is set.
func (a *HelixApp) InitArchive(version string, force bool) error {
	if a.hasReadableArchive() && !force {
		return ErrArchiveExists
	}
	if version == "" {
		version = a.cfg.Archive.Version
	}

	if err := os.MkdirAll(filepath.Dir(a.cfg.Archive.Path), 0700); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}

	arc := archive.New(a.cfg.Archive.Path, version, archiveOptions(a.cfg.Archive))
	if err := arc.Save(); err != nil {
		return fmt.Errorf("saving archive: %w", err)
	}
	a.archive = arc
	a.origin = archive.OriginLoaded
	a.logger.Info("archive initialised", "path", arc.Path(), "version", version)
	return nil
}

func (a *HelixApp) hasReadableArchive() bool {
	return a.origin == archive.OriginLoaded || a.origin == archive.OriginBodyReset
}

// SetArchiveValue stores value under key and persists the archive. With mask
// set the value must be a string and is stored Field-Masked.
func (a *HelixApp) SetArchiveValue(key string, value any, mask bool) error {
	if mask {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("only string values can be masked")
		}
		if !fieldmask.Eligible(s) {
			a.logger.Warn("value contains bytes the field mask cannot restore", "key", key)
		}
		value = fieldmask.Encrypt(s)
	}

	if err := os.MkdirAll(filepath.Dir(a.archive.Path()), 0700); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}
	if err := a.archive.Set(key, value); err != nil {
		return err
	}
	if !a.archive.AutoSave() {
		if err := a.archive.Save(); err != nil {
			return fmt.Errorf("saving archive: %w", err)
		}
	}
	a.origin = archive.OriginLoaded
	a.logger.Info("archive key set", "key", key, "masked", mask)
	return nil
}

// GetArchiveValue returns the value under key. With unmask set a string value
// is passed through the field mask decryption.
func (a *HelixApp) GetArchiveValue(key string, unmask bool) (any, bool) {
	v := a.archive.Get(key)
	if v == nil {
		return nil, false
	}
	if s, ok := v.(string); ok && unmask {
		return fieldmask.Decrypt(s), true
	}
	return v, true
}

// ImportArchive merges the top-level keys of a JSON object into the archive.
// Comments and trailing commas are accepted. Keys listed in MaskedKeys are
// Field-Masked on the way in. It returns the number of keys imported.
func (a *HelixApp) ImportArchive(data []byte) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return 0, fmt.Errorf("parsing import document: %w", err)
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		_, isString := doc[k].(string)
		if err := a.SetArchiveValue(k, doc[k], MaskedKeys[k] && isString); err != nil {
			return 0, fmt.Errorf("importing %q: %w", k, err)
		}
	}
	return len(keys), nil
}

// S3Credentials returns the S3 keys stored in the archive.
func (a *HelixApp) S3Credentials() (vault.S3Credentials, error) {
	return ReadS3Credentials(a.archive)
}

// ConnectionDetails returns the SQL credentials stored in the archive.
func (a *HelixApp) ConnectionDetails() (ConnectionDetails, error) {
	return ReadConnectionDetails(a.archive)
}

func (a *HelixApp) blobVault(ctx context.Context) (cdn.Vault, error) {
	if a.vault != nil {
		return a.vault, nil
	}
	if len(a.cfg.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}

	v, err := vault.NewVaultFromConfig(ctx, a.cfg.Vaults[0], a.S3Credentials)
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}
	if err := v.ValidateSetup(ctx); err != nil {
		return nil, fmt.Errorf("validating vault: %w", err)
	}
	a.vault = v
	return v, nil
}

func (a *HelixApp) blobStore() (*database.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := database.NewStoreFromConfig(a.cfg.Database, a.cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating blob index: %w", err)
	}
	a.store = st
	return st, nil
}

func (a *HelixApp) backupEncryptor() (encryption.Encryptor, error) {
	if a.encryptor != nil {
		return a.encryptor, nil
	}
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	a.encryptor = enc
	return enc, nil
}

func (a *HelixApp) cdnService(ctx context.Context) (*cdn.Service, error) {
	if a.service != nil {
		return a.service, nil
	}
	v, err := a.blobVault(ctx)
	if err != nil {
		return nil, err
	}
	st, err := a.blobStore()
	if err != nil {
		return nil, err
	}

	fsmgr := helixfs.NewOSFilesystemManager(a.cfg.Ingest.Ignore)
	a.service = cdn.NewService(st, v, fsmgr, &slogAdapter{l: a.logger}, cdn.RealClock{}, cdn.UUIDGenerator{}, a.op.ID)
	return a.service, nil
}

// Ingest stores every file under dir. An empty dir falls back to ingest.dir.
func (a *HelixApp) Ingest(ctx context.Context, dir string, recursive bool) (*cdn.IngestOperation, error) {
	if dir == "" {
		dir = a.cfg.Ingest.Dir
	}
	if dir == "" {
		return nil, ErrNoIngestDir
	}

	svc, err := a.cdnService(ctx)
	if err != nil {
		return nil, err
	}
	return svc.Ingest(ctx, dir, recursive)
}

// Resolve looks up a "<hash>.<ext>" segment exactly as the HTTP route does.
func (a *HelixApp) Resolve(ctx context.Context, segment string) (*cdn.Blob, error) {
	svc, err := a.cdnService(ctx)
	if err != nil {
		return nil, err
	}
	return svc.Resolve(ctx, segment)
}

// History returns the most recent ingest operations.
func (a *HelixApp) History(ctx context.Context, limit int) ([]*cdn.IngestOperation, error) {
	svc, err := a.cdnService(ctx)
	if err != nil {
		return nil, err
	}
	return svc.History(ctx, limit)
}

// Serve runs the HTTP server on the configured address until ctx is cancelled.
func (a *HelixApp) Serve(ctx context.Context) error {
	svc, err := a.cdnService(ctx)
	if err != nil {
		return err
	}
	return server.New(svc, &slogAdapter{l: a.logger}).Run(ctx, a.cfg.Server.Listen)
}

// SetupKeys creates the backup key pair protected by passphrase.
func (a *HelixApp) SetupKeys(passphrase string) error {
	enc, err := a.backupEncryptor()
	if err != nil {
		return err
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up keys: %w", err)
	}
	a.logger.Info("backup keys created")
	return nil
}

// BackupArchive encrypts the archive file as saved on disk and uploads it to
// the vault under the next metadata version, which it returns.
func (a *HelixApp) BackupArchive(ctx context.Context) (int64, error) {
	raw, err := os.ReadFile(a.archive.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrArchiveNotSaved
		}
		return 0, fmt.Errorf("reading archive: %w", err)
	}
	if _, _, err := archive.Decode(raw, archive.Options{Recovery: archive.ResetCorruptBody}); err != nil {
		return 0, fmt.Errorf("refusing to back up unreadable archive: %w", err)
	}

	enc, err := a.backupEncryptor()
	if err != nil {
		return 0, err
	}
	var sealed bytes.Buffer
	if err := enc.Encrypt(bytes.NewReader(raw), &sealed); err != nil {
		return 0, fmt.Errorf("encrypting archive: %w", err)
	}

	v, err := a.blobVault(ctx)
	if err != nil {
		return 0, err
	}
	current, err := v.GetMetadataVersion(ctx, a.cfg.HostID, BackupMetadataName)
	if err != nil {
		return 0, fmt.Errorf("reading backup version: %w", err)
	}
	version := current + 1

	if err := v.PutMetadata(ctx, a.cfg.HostID, BackupMetadataName, bytes.NewReader(sealed.Bytes()), int64(sealed.Len()), version); err != nil {
		return 0, fmt.Errorf("uploading archive backup: %w", err)
	}

	a.logger.Info("archive backed up", "version", version, "size", sealed.Len())
	return version, nil
}

// RestoreArchive downloads the latest backup, decrypts it with the private
// key unlocked by passphrase and replaces the archive file. A readable local
// archive is only replaced when force is set. It returns the restored version.
func (a *HelixApp) RestoreArchive(ctx context.Context, passphrase string, force bool) (int64, error) {
	if a.hasReadableArchive() && !force {
		return 0, ErrArchiveExists
	}

	v, err := a.blobVault(ctx)
	if err != nil {
		return 0, err
	}
	version, err := v.GetMetadataVersion(ctx, a.cfg.HostID, BackupMetadataName)
	if err != nil {
		return 0, fmt.Errorf("reading backup version: %w", err)
	}
	if version == 0 {
		return 0, ErrNoBackup
	}

	var sealed bytes.Buffer
	if err := v.GetMetadata(ctx, a.cfg.HostID, BackupMetadataName, &sealed); err != nil {
		return 0, fmt.Errorf("downloading archive backup: %w", err)
	}

	enc, err := a.backupEncryptor()
	if err != nil {
		return 0, err
	}
	dec, err := enc.Unlock(passphrase)
	if err != nil {
		return 0, fmt.Errorf("unlocking backup key: %w", err)
	}
	var raw bytes.Buffer
	if err := dec.Decrypt(&sealed, &raw); err != nil {
		return 0, fmt.Errorf("decrypting archive backup: %w", err)
	}

	if _, _, err := archive.Decode(raw.Bytes(), archive.Options{Recovery: archive.ResetCorruptBody}); err != nil {
		return 0, fmt.Errorf("backup is not a valid archive: %w", err)
	}
	if err := writeFileAtomic(a.cfg.Archive.Path, raw.Bytes()); err != nil {
		return 0, fmt.Errorf("writing restored archive: %w", err)
	}

	if err := a.loadArchive(); err != nil {
		return 0, err
	}
	a.logger.Info("archive restored", "version", version, "path", a.cfg.Archive.Path)
	return version, nil
}

// writeFileAtomic replaces path with data through a temp file and rename in
// the same directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".archive-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Close releases the blob index and log file and records how the operation
// ended.
func (a *HelixApp) Close() error {
	var firstErr error

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing blob index: %w", err)
		}
	}

	a.logger.Debug("operation finished", "operation", a.op.Name, "status", a.op.Status, "elapsed", a.op.Elapsed(a.now()))

	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
