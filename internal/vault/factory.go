package vault

import (
	"context"
	"fmt"

	"helix/internal/cdn"
	"helix/internal/config"
)

// CredentialsFunc supplies S3 credentials on demand. It is only called when
// the configured vault needs them.
type CredentialsFunc func() (S3Credentials, error)

// NewVaultFromConfig creates a Vault implementation based on the vault config type.
func NewVaultFromConfig(ctx context.Context, cfg config.VaultConfig, creds CredentialsFunc) (cdn.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(cfg.Name), nil
	case "s3":
		if creds == nil {
			return nil, fmt.Errorf("s3 vault requires credentials")
		}
		c, err := creds()
		if err != nil {
			return nil, fmt.Errorf("reading s3 credentials: %w", err)
		}
		v, err := NewS3Vault(ctx, cfg.Name, S3Options{
			Bucket:      cfg.S3Bucket,
			Prefix:      cfg.S3Prefix,
			Region:      cfg.S3Region,
			Endpoint:    cfg.S3Endpoint,
			Credentials: c,
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	case "filesystem":
		if cfg.FSVaultRoot == "" {
			return nil, fmt.Errorf("filesystem vault requires fs_vault_root to be set")
		}
		v, err := NewFileSystemVault(cfg.Name, cfg.FSVaultRoot)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
