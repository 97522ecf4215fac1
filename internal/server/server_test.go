package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"helix/internal/cdn"
	"helix/internal/server"
	"helix/internal/testutil"
)

func newTestServer(t *testing.T) (*server.Server, *cdn.Service) {
	t.Helper()
	svc := cdn.NewService(
		testutil.NewTestStore(t),
		testutil.NewTestVault(),
		testutil.NewMockFilesystemManager(),
		cdn.NewNopLogger(),
		testutil.FixedClock(),
		testutil.NewStubIDGenerator(),
		"run-1",
	)
	return server.New(svc, cdn.NewNopLogger()), svc
}

type failingResolver struct{ err error }

func (f failingResolver) Resolve(context.Context, string) (*cdn.Blob, error) {
	return nil, f.err
}

func TestServer_Index(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "Hello, world!" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "Hello, world!")
	}
}

func TestServer_Blob(t *testing.T) {
	srv, svc := newTestServer(t)
	ctx := context.Background()

	png, err := svc.Put(ctx, []byte("\x89PNG fake"), "png")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	jpeg, err := svc.Put(ctx, []byte("jpeg data"), "jpg")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantType    string
		wantBody    string
		wantMessage string
	}{
		{"png", "/cdn/" + png.Hash + ".png", http.StatusOK, "image/png", "\x89PNG fake", ""},
		{"jpg alias", "/cdn/" + jpeg.Hash + ".jpg", http.StatusOK, "image/jpeg", "jpeg data", ""},
		{"no extension", "/cdn/" + png.Hash, http.StatusNotAcceptable, "application/json", "", "Cannot parse hash from the route"},
		{"bad hash", "/cdn/hello.png", http.StatusNotAcceptable, "application/json", "", "Cannot parse hash from the route"},
		{"unknown hash", "/cdn/" + cdn.NewID([]byte("x")) + ".png", http.StatusNotFound, "application/json", "", "No ressource found at this address"},
		{"wrong extension", "/cdn/" + png.Hash + ".jpeg", http.StatusNotFound, "application/json", "", "No ressource found at this address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := rec.Header().Get("Content-Type"); got != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
			if tt.wantMessage == "" {
				if rec.Body.String() != tt.wantBody {
					t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
				}
				return
			}

			var body server.ErrorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding error body: %v", err)
			}
			if body.Status != tt.wantStatus || body.Message != tt.wantMessage || body.Solution == "" {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestServer_BackendUnavailable(t *testing.T) {
	srv := server.New(failingResolver{err: cdn.ErrBackendUnavailable}, cdn.NewNopLogger())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cdn/abc.png", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body server.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Message != "Unable to acquire intern connection" || body.Solution != "Retry later" {
		t.Errorf("body = %+v", body)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := server.New(failingResolver{err: errors.New("unused")}, cdn.NewNopLogger())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cdn/abc.png", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestServer_ServeShutsDownOnCancel(t *testing.T) {
	srv, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		cancel()
		t.Fatalf("GET / error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "Hello, world!" {
		t.Errorf("body = %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
