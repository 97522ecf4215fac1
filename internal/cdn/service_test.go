package cdn_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"helix/internal/cdn"
	"helix/internal/testutil"
)

type testEnv struct {
	service *cdn.Service
	store   cdn.Store
	vault   cdn.Vault
	fs      *testutil.MockFilesystemManager
	clock   *testutil.StubClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store: testutil.NewTestStore(t),
		vault: testutil.NewTestVault(),
		fs:    testutil.NewMockFilesystemManager(),
		clock: testutil.FixedClock(),
	}
	env.service = newService(env)
	return env
}

func newService(env *testEnv) *cdn.Service {
	return cdn.NewService(env.store, env.vault, env.fs, cdn.NewNopLogger(), env.clock, testutil.NewStubIDGenerator(), "run-1")
}

// pingFailStore reports the backend as unreachable.
type pingFailStore struct {
	cdn.Store
}

func (pingFailStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

func TestService_Put(t *testing.T) {
	ctx := context.Background()

	t.Run("stores blob in vault and index", func(t *testing.T) {
		env := newTestEnv(t)
		data := []byte("png bytes")

		rec, err := env.service.Put(ctx, data, ".png")
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if rec.Hash != cdn.NewID(data) {
			t.Errorf("Hash = %s, want %s", rec.Hash, cdn.NewID(data))
		}
		if rec.Extension != cdn.ExtPNG {
			t.Errorf("Extension = %q, want %q", rec.Extension, cdn.ExtPNG)
		}
		if !rec.CreatedAt.Equal(env.clock.Now()) {
			t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, env.clock.Now())
		}

		blob, err := env.service.Get(ctx, rec.Hash, "png")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(blob.Data) != "png bytes" {
			t.Errorf("Data = %q, want %q", blob.Data, "png bytes")
		}
	})

	t.Run("duplicate put returns existing record", func(t *testing.T) {
		env := newTestEnv(t)
		data := []byte("same")

		first, err := env.service.Put(ctx, data, "txt")
		if err != nil {
			t.Fatalf("first Put() error = %v", err)
		}
		env.clock.Advance(time.Hour)
		second, err := env.service.Put(ctx, data, "txt")
		if err != nil {
			t.Fatalf("second Put() error = %v", err)
		}
		if !second.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("CreatedAt = %v, want original %v", second.CreatedAt, first.CreatedAt)
		}
	})
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("jpg finds blob stored as jpeg", func(t *testing.T) {
		env := newTestEnv(t)
		rec, err := env.service.Put(ctx, []byte("photo"), "jpeg")
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		blob, err := env.service.Get(ctx, rec.Hash, "jpg")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if blob.ContentType() != "image/jpeg" {
			t.Errorf("ContentType() = %q, want image/jpeg", blob.ContentType())
		}
	})

	t.Run("wrong extension is not found", func(t *testing.T) {
		env := newTestEnv(t)
		rec, err := env.service.Put(ctx, []byte("photo"), "jpeg")
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		_, err = env.service.Get(ctx, rec.Hash, "png")
		if !errors.Is(err, cdn.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("malformed hash", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.service.Get(ctx, "xyz", "png")
		if !errors.Is(err, cdn.ErrMalformedID) {
			t.Errorf("Get() error = %v, want ErrMalformedID", err)
		}
	})

	t.Run("indexed blob missing from vault", func(t *testing.T) {
		env := newTestEnv(t)
		rec, err := env.service.Put(ctx, []byte("orphan"), "png")
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		env.vault = testutil.NewTestVault()
		svc := newService(env)

		_, err = svc.Get(ctx, rec.Hash, "png")
		if !errors.Is(err, cdn.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_Lookup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	rec, err := env.service.Put(ctx, []byte("notes"), "md")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	blob, err := env.service.Lookup(ctx, rec.Hash)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if blob.Extension != cdn.ExtPlain {
		t.Errorf("Extension = %q, want %q", blob.Extension, cdn.ExtPlain)
	}

	_, err = env.service.Lookup(ctx, cdn.NewID([]byte("other")))
	if !errors.Is(err, cdn.ErrNotFound) {
		t.Errorf("Lookup() error = %v, want ErrNotFound", err)
	}
}

func TestService_Resolve(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	rec, err := env.service.Put(ctx, []byte("pixels"), "png")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	tests := []struct {
		name    string
		segment string
		wantErr error
	}{
		{"found", rec.Hash + ".png", nil},
		{"uppercase hash", strings.ToUpper(rec.Hash) + ".PNG", nil},
		{"missing extension", rec.Hash, cdn.ErrMalformedID},
		{"bad hash", "abc.png", cdn.ErrMalformedID},
		{"unknown hash", cdn.NewID([]byte("nope")) + ".png", cdn.ErrNotFound},
		{"other extension", rec.Hash + ".jpg", cdn.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := env.service.Resolve(ctx, tt.segment)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if string(blob.Data) != "pixels" {
				t.Errorf("Data = %q, want %q", blob.Data, "pixels")
			}
		})
	}

	t.Run("backend unavailable", func(t *testing.T) {
		env.store = pingFailStore{Store: env.store}
		svc := newService(env)

		_, err := svc.Resolve(ctx, rec.Hash+".png")
		if !errors.Is(err, cdn.ErrBackendUnavailable) {
			t.Errorf("Resolve() error = %v, want ErrBackendUnavailable", err)
		}
	})
}

func TestService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("ingests files and records operation", func(t *testing.T) {
		env := newTestEnv(t)
		env.fs.AddDirectory("/srv/assets")
		env.fs.AddFile("/srv/assets/a.png", []byte("a"))
		env.fs.AddFile("/srv/assets/b.jpg", []byte("b"))
		env.fs.AddDirectory("/srv/assets/sub")
		env.fs.AddFile("/srv/assets/sub/c.txt", []byte("c"))

		op, err := env.service.Ingest(ctx, "/srv/assets", false)
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if op.BlobCount != 2 {
			t.Errorf("BlobCount = %d, want 2", op.BlobCount)
		}
		if op.Status != cdn.StatusSuccess {
			t.Errorf("Status = %q, want %q", op.Status, cdn.StatusSuccess)
		}
		if op.OperationID != "run-1" {
			t.Errorf("OperationID = %q, want run-1", op.OperationID)
		}

		if _, err := env.service.Get(ctx, cdn.NewID([]byte("b")), "jpeg"); err != nil {
			t.Errorf("Get(b.jpg) error = %v", err)
		}
		if _, err := env.service.Lookup(ctx, cdn.NewID([]byte("c"))); !errors.Is(err, cdn.ErrNotFound) {
			t.Errorf("Lookup(sub/c.txt) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("recursive includes subdirectories", func(t *testing.T) {
		env := newTestEnv(t)
		env.fs.AddDirectory("/srv/assets")
		env.fs.AddFile("/srv/assets/a.png", []byte("a"))
		env.fs.AddFile("/srv/assets/sub/c.txt", []byte("c"))

		op, err := env.service.Ingest(ctx, "/srv/assets", true)
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if op.BlobCount != 2 {
			t.Errorf("BlobCount = %d, want 2", op.BlobCount)
		}
	})

	t.Run("skips ignored files", func(t *testing.T) {
		env := newTestEnv(t)
		env.fs.AddDirectory("/srv/assets")
		env.fs.AddFile("/srv/assets/a.png", []byte("a"))
		env.fs.AddFile("/srv/assets/.DS_Store", []byte("junk"))
		env.fs.Ignore("/srv/assets/.DS_Store")

		op, err := env.service.Ingest(ctx, "/srv/assets", false)
		if err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
		if op.BlobCount != 1 {
			t.Errorf("BlobCount = %d, want 1", op.BlobCount)
		}
	})

	t.Run("rejects a file", func(t *testing.T) {
		env := newTestEnv(t)
		env.fs.AddFile("/srv/a.png", []byte("a"))

		_, err := env.service.Ingest(ctx, "/srv/a.png", false)
		if !errors.Is(err, cdn.ErrIngestNotDirectory) {
			t.Errorf("Ingest() error = %v, want ErrIngestNotDirectory", err)
		}
	})

	t.Run("history lists runs newest first", func(t *testing.T) {
		env := newTestEnv(t)
		env.fs.AddDirectory("/srv/one")
		env.fs.AddDirectory("/srv/two")

		if _, err := env.service.Ingest(ctx, "/srv/one", false); err != nil {
			t.Fatalf("Ingest(one) error = %v", err)
		}
		env.clock.Advance(time.Minute)
		if _, err := env.service.Ingest(ctx, "/srv/two", false); err != nil {
			t.Fatalf("Ingest(two) error = %v", err)
		}

		ops, err := env.service.History(ctx, 10)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(ops) != 2 {
			t.Fatalf("len(ops) = %d, want 2", len(ops))
		}
		if ops[0].Source != "/srv/two" {
			t.Errorf("ops[0].Source = %q, want /srv/two", ops[0].Source)
		}
	})
}
