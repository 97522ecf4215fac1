// Package server exposes stored blobs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"helix/internal/cdn"
)

// Resolver looks up a blob from a "<hash>.<ext>" route segment.
type Resolver interface {
	Resolve(ctx context.Context, segment string) (*cdn.Blob, error)
}

// ErrorBody is the JSON document returned for failed lookups.
type ErrorBody struct {
	Status   int    `json:"status"`
	Message  string `json:"message"`
	Solution string `json:"solution"`
}

var (
	errMalformed = ErrorBody{
		Status:   http.StatusNotAcceptable,
		Message:  "Cannot parse hash from the route",
		Solution: `Try the form "/cdn/<hash>.<extension>"`,
	}
	errUnavailable = ErrorBody{
		Status:   http.StatusInternalServerError,
		Message:  "Unable to acquire intern connection",
		Solution: "Retry later",
	}
	errNotFound = ErrorBody{
		Status:   http.StatusNotFound,
		Message:  "No ressource found at this address",
		Solution: "Check that your hash is the good one",
	}
)

const shutdownTimeout = 10 * time.Second

// Server serves the CDN routes.
type Server struct {
	resolver Resolver
	logger   cdn.Logger
	mux      *http.ServeMux
}

// New creates a Server backed by resolver.
func New(resolver Resolver, logger cdn.Logger) *Server {
	s := &Server{
		resolver: resolver,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /cdn/{file}", s.handleBlob)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, "Hello, world!")
}

func (s *Server) handleBlob(w http.ResponseWriter, r *http.Request) {
	segment := r.PathValue("file")

	blob, err := s.resolver.Resolve(r.Context(), segment)
	if err != nil {
		body := classify(err)
		if body.Status == http.StatusInternalServerError {
			s.logger.Error("blob lookup failed", "segment", segment, "error", err)
		} else {
			s.logger.Debug("blob lookup rejected", "segment", segment, "error", err)
		}
		writeError(w, body)
		return
	}

	w.Header().Set("Content-Type", blob.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(blob.Data); err != nil {
		s.logger.Warn("writing blob response", "hash", blob.ID, "error", err)
	}
}

func classify(err error) ErrorBody {
	switch {
	case errors.Is(err, cdn.ErrMalformedID):
		return errMalformed
	case errors.Is(err, cdn.ErrNotFound):
		return errNotFound
	default:
		return errUnavailable
	}
}

func writeError(w http.ResponseWriter, body ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.Status)
	json.NewEncoder(w).Encode(body)
}
