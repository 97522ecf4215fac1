package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"helix/internal/cdn"
)

type fakeObject struct {
	data []byte
	meta map[string]string
}

// fakeS3 keeps objects in memory. Multipart methods come from the embedded
// nil interface and panic if the uploader ever reaches them.
type fakeS3 struct {
	s3Client

	mu      sync.Mutex
	bucket  string
	objects map[string]fakeObject
	puts    int
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string]fakeObject)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = fakeObject{data: data, meta: in.Metadata}
	f.puts++
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.data)), Metadata: obj.meta}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{Metadata: obj.meta}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if *in.Bucket != f.bucket {
		return nil, &types.NoSuchBucket{}
	}
	return &s3.HeadBucketOutput{}, nil
}

func TestS3Vault_Content(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3("blobs")
	v := newS3VaultWithClient("remote", "blobs", "cdn", client)

	data := "png bytes"
	hash := cdn.NewID([]byte(data))

	if err := v.PutContent(ctx, hash, strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}
	if _, ok := client.objects["cdn/content/"+hash]; !ok {
		t.Fatalf("object not stored under prefixed key; have %v", client.objects)
	}

	// second put is skipped
	if err := v.PutContent(ctx, hash, strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("second PutContent() error = %v", err)
	}
	if client.puts != 1 {
		t.Errorf("puts = %d, want 1", client.puts)
	}

	var buf bytes.Buffer
	if err := v.GetContent(ctx, hash, &buf); err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if buf.String() != data {
		t.Errorf("GetContent() = %q, want %q", buf.String(), data)
	}

	if err := v.GetContent(ctx, "missing", &buf); !errors.Is(err, cdn.ErrNotFound) {
		t.Errorf("GetContent() error = %v, want cdn.ErrNotFound", err)
	}
}

func TestS3Vault_PutContentSizeMismatch(t *testing.T) {
	v := newS3VaultWithClient("remote", "blobs", "", newFakeS3("blobs"))

	err := v.PutContent(context.Background(), "h", strings.NewReader("abc"), 10)
	if err == nil {
		t.Error("PutContent() expected error for size mismatch")
	}
}

func TestS3Vault_Metadata(t *testing.T) {
	ctx := context.Background()
	v := newS3VaultWithClient("remote", "blobs", "", newFakeS3("blobs"))

	version, err := v.GetMetadataVersion(ctx, "host", "archive")
	if err != nil || version != 0 {
		t.Fatalf("GetMetadataVersion() = %d, %v, want 0, nil", version, err)
	}

	data := "encrypted archive"
	if err := v.PutMetadata(ctx, "host", "archive", strings.NewReader(data), int64(len(data)), 1700000000); err != nil {
		t.Fatalf("PutMetadata() error = %v", err)
	}

	version, err = v.GetMetadataVersion(ctx, "host", "archive")
	if err != nil || version != 1700000000 {
		t.Errorf("GetMetadataVersion() = %d, %v, want 1700000000, nil", version, err)
	}

	var buf bytes.Buffer
	if err := v.GetMetadata(ctx, "host", "archive", &buf); err != nil {
		t.Fatalf("GetMetadata() error = %v", err)
	}
	if buf.String() != data {
		t.Errorf("GetMetadata() = %q, want %q", buf.String(), data)
	}
}

func TestS3Vault_ValidateSetup(t *testing.T) {
	ctx := context.Background()

	if err := newS3VaultWithClient("remote", "blobs", "", newFakeS3("blobs")).ValidateSetup(ctx); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
	if err := newS3VaultWithClient("remote", "other", "", newFakeS3("blobs")).ValidateSetup(ctx); err == nil {
		t.Error("ValidateSetup() expected error for missing bucket")
	}
}
