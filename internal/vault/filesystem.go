package vault

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"helix/internal/cdn"
)

// FileSystemVault is a filesystem-based implementation of the Vault interface.
// It stores blobs and metadata as files in a directory structure:
//
//	<root>/
//	  content/
//	    <hash>                (blob bytes, named by SHA3-256)
//	  metadata/
//	    <hostID>/
//	      <name>              (metadata item)
//	      <name>.version      (version marker)
type FileSystemVault struct {
	name        string
	root        string
	contentDir  string
	metadataDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	contentDir := filepath.Join(root, "content")
	metadataDir := filepath.Join(root, "metadata")

	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	if err := os.MkdirAll(metadataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}

	return &FileSystemVault{
		name:        name,
		root:        root,
		contentDir:  contentDir,
		metadataDir: metadataDir,
	}, nil
}

// PutContent stores content identified by its hash.
// The operation is idempotent: storing the same hash multiple times is safe.
func (v *FileSystemVault) PutContent(_ context.Context, hash string, r io.Reader, size int64) error {
	destPath := filepath.Join(v.contentDir, hash)

	if _, err := os.Stat(destPath); err == nil {
		// Already stored; drain r so callers see the same size check.
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	return v.writeFile(destPath, r, size)
}

// GetContent retrieves content by hash and writes it to w.
func (v *FileSystemVault) GetContent(_ context.Context, hash string, w io.Writer) error {
	srcPath := filepath.Join(v.contentDir, hash)
	return v.readFile(srcPath, w, fmt.Sprintf("content %s", hash))
}

// PutMetadata stores a named metadata item for a host along with a version marker.
func (v *FileSystemVault) PutMetadata(_ context.Context, hostID, name string, r io.Reader, size int64, version int64) error {
	hostDir := filepath.Join(v.metadataDir, hostID)
	if err := os.MkdirAll(hostDir, 0755); err != nil {
		return fmt.Errorf("failed to create host metadata directory: %w", err)
	}

	if err := v.writeFile(filepath.Join(hostDir, name), r, size); err != nil {
		return err
	}

	versionPath := filepath.Join(hostDir, name+".version")
	return os.WriteFile(versionPath, []byte(strconv.FormatInt(version, 10)), 0644)
}

// GetMetadataVersion returns the metadata version for a named item on a host.
// Returns 0 if no version file exists.
func (v *FileSystemVault) GetMetadataVersion(_ context.Context, hostID, name string) (int64, error) {
	versionPath := filepath.Join(v.metadataDir, hostID, name+".version")
	data, err := os.ReadFile(versionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// GetMetadata retrieves a named metadata item for a host and writes it to w.
func (v *FileSystemVault) GetMetadata(_ context.Context, hostID, name string, w io.Writer) error {
	srcPath := filepath.Join(v.metadataDir, hostID, name)
	return v.readFile(srcPath, w, fmt.Sprintf("metadata %q for host %s", name, hostID))
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup(context.Context) error {
	info, err := os.Stat(v.root)
	if err != nil {
		return fmt.Errorf("vault root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault root is not a directory: %s", v.root)
	}

	for _, dir := range []string{v.contentDir, v.metadataDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}

	return nil
}

// writeFile writes data from r to destPath using a temp file and rename.
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Same directory so the rename stays on one filesystem.
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// readFile copies srcPath to w. A missing file is reported as cdn.ErrNotFound.
func (v *FileSystemVault) readFile(srcPath string, w io.Writer, what string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", cdn.ErrNotFound, what)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return nil
}

// Compile-time check that FileSystemVault implements cdn.Vault interface
var _ cdn.Vault = (*FileSystemVault)(nil)
