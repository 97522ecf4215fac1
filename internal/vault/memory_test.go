package vault

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"helix/internal/cdn"
)

func TestMemoryVault_PutAndGetContent(t *testing.T) {
	ctx := context.Background()
	vault := NewMemoryVault("test-vault")

	tests := []struct {
		name    string
		hash    string
		content string
	}{
		{
			name:    "store and retrieve content",
			hash:    cdn.NewID([]byte("hello world")),
			content: "hello world",
		},
		{
			name:    "store empty content",
			hash:    cdn.NewID(nil),
			content: "",
		},
		{
			name:    "store large content",
			hash:    "large",
			content: strings.Repeat("x", 10000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := strings.NewReader(tt.content)
			if err := vault.PutContent(ctx, tt.hash, r, int64(len(tt.content))); err != nil {
				t.Fatalf("PutContent() error = %v", err)
			}

			var buf bytes.Buffer
			if err := vault.GetContent(ctx, tt.hash, &buf); err != nil {
				t.Fatalf("GetContent() unexpected error: %v", err)
			}

			if got := buf.String(); got != tt.content {
				t.Errorf("GetContent() = %q, want %q", got, tt.content)
			}
		})
	}
}

func TestMemoryVault_PutContentIdempotent(t *testing.T) {
	ctx := context.Background()
	vault := NewMemoryVault("test-vault")

	content := "test content"
	hash := cdn.NewID([]byte(content))

	for i := 0; i < 2; i++ {
		r := strings.NewReader(content)
		if err := vault.PutContent(ctx, hash, r, int64(len(content))); err != nil {
			t.Fatalf("PutContent() iteration %d error: %v", i+1, err)
		}
	}

	var buf bytes.Buffer
	if err := vault.GetContent(ctx, hash, &buf); err != nil {
		t.Fatalf("GetContent() error: %v", err)
	}
	if got := buf.String(); got != content {
		t.Errorf("GetContent() = %q, want %q", got, content)
	}
}

func TestMemoryVault_GetContentNotFound(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	var buf bytes.Buffer
	err := vault.GetContent(context.Background(), "nonexistent", &buf)
	if !errors.Is(err, cdn.ErrNotFound) {
		t.Errorf("GetContent() error = %v, want cdn.ErrNotFound", err)
	}
}

func TestMemoryVault_PutContentSizeMismatch(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	content := "test"
	err := vault.PutContent(context.Background(), "hash", strings.NewReader(content), int64(len(content)+10))
	if err == nil {
		t.Error("PutContent() expected error for size mismatch, got nil")
	}
}

func TestMemoryVault_Metadata(t *testing.T) {
	ctx := context.Background()
	vault := NewMemoryVault("test-vault")
	hostID := "host-123"

	version, err := vault.GetMetadataVersion(ctx, hostID, "archive")
	if err != nil || version != 0 {
		t.Fatalf("GetMetadataVersion() = %d, %v, want 0, nil", version, err)
	}

	data := "archive backup"
	if err := vault.PutMetadata(ctx, hostID, "archive", strings.NewReader(data), int64(len(data)), 42); err != nil {
		t.Fatalf("PutMetadata() error: %v", err)
	}

	var buf bytes.Buffer
	if err := vault.GetMetadata(ctx, hostID, "archive", &buf); err != nil {
		t.Fatalf("GetMetadata() error: %v", err)
	}
	if got := buf.String(); got != data {
		t.Errorf("GetMetadata() = %q, want %q", got, data)
	}

	version, err = vault.GetMetadataVersion(ctx, hostID, "archive")
	if err != nil || version != 42 {
		t.Errorf("GetMetadataVersion() = %d, %v, want 42, nil", version, err)
	}

	buf.Reset()
	if err := vault.GetMetadata(ctx, hostID, "other", &buf); !errors.Is(err, cdn.ErrNotFound) {
		t.Errorf("GetMetadata() error = %v, want cdn.ErrNotFound", err)
	}
}

func TestMemoryVault_ValidateSetup(t *testing.T) {
	vault := NewMemoryVault("test-vault")

	if err := vault.ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() unexpected error: %v", err)
	}
}
