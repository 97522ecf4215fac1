package vault

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"helix/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	noCreds := func() (S3Credentials, error) {
		return S3Credentials{}, errors.New("archive has no s3 credentials")
	}
	creds := func() (S3Credentials, error) {
		return S3Credentials{AccessKeyID: "AKIA", SecretAccessKey: "secret"}, nil
	}

	tests := []struct {
		name    string
		cfg     config.VaultConfig
		creds   CredentialsFunc
		wantErr bool
	}{
		{
			name: "memory vault",
			cfg:  config.VaultConfig{Type: "memory", Name: "test-memory"},
		},
		{
			name: "filesystem vault",
			cfg: config.VaultConfig{
				Type:        "filesystem",
				Name:        "test-fs",
				FSVaultRoot: filepath.Join(t.TempDir(), "vault"),
			},
		},
		{
			name:    "filesystem vault without root",
			cfg:     config.VaultConfig{Type: "filesystem", Name: "test-fs"},
			wantErr: true,
		},
		{
			name:    "s3 vault without credentials",
			cfg:     config.VaultConfig{Type: "s3", Name: "test-s3", S3Bucket: "my-bucket"},
			creds:   noCreds,
			wantErr: true,
		},
		{
			name:    "s3 vault with nil credentials func",
			cfg:     config.VaultConfig{Type: "s3", Name: "test-s3", S3Bucket: "my-bucket"},
			wantErr: true,
		},
		{
			name:    "s3 vault without bucket",
			cfg:     config.VaultConfig{Type: "s3", Name: "test-s3", S3Region: "us-east-1"},
			creds:   creds,
			wantErr: true,
		},
		{
			name:    "unknown vault type",
			cfg:     config.VaultConfig{Type: "unknown", Name: "test-unknown"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewVaultFromConfig(context.Background(), tt.cfg, tt.creds)

			if (err != nil) != tt.wantErr {
				t.Fatalf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != tt.wantErr {
				t.Fatalf("NewVaultFromConfig() returned nil = %v, wantErr %v", got == nil, tt.wantErr)
			}

			if !tt.wantErr {
				if err := got.ValidateSetup(context.Background()); err != nil {
					t.Errorf("ValidateSetup() error = %v", err)
				}
			}
		})
	}
}
