// Package staticserver serves a directory over plain HTTP with the headers a
// cross-origin isolated page needs.
package staticserver

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/core-tools/hsu-webllm/pkg/errors"
	"github.com/core-tools/hsu-webllm/pkg/logging"
	"github.com/core-tools/hsu-webllm/pkg/portlease"
)

const DefaultShutdownTimeout = 5 * time.Second

// IsolationHeaders are set on every response. SharedArrayBuffer and the
// WebGPU worker paths used by WebLLM are only available to isolated pages.
var IsolationHeaders = map[string]string{
	"Cross-Origin-Embedder-Policy": "require-corp",
	"Cross-Origin-Opener-Policy":   "same-origin",
}

type Options struct {
	Root            string
	ShutdownTimeout time.Duration
}

type Server struct {
	root            string
	shutdownTimeout time.Duration
	logger          logging.Logger
}

func New(options Options, logger logging.Logger) (*Server, error) {
	info, err := os.Stat(options.Root)
	if err != nil {
		return nil, errors.NewIOError("document root not accessible", err).WithContext("root", options.Root)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError("document root is not a directory", nil).WithContext("root", options.Root)
	}
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		root:            options.Root,
		shutdownTimeout: options.ShutdownTimeout,
		logger:          logger,
	}, nil
}

// Handler returns the read-only file handler with isolation headers applied.
func (s *Server) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for name, value := range IsolationHeaders {
			w.Header().Set(name, value)
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// Serve takes ownership of lease and serves until ctx is done. The lease is
// released before Serve returns, whatever the outcome.
func (s *Server) Serve(ctx context.Context, lease *portlease.Lease) error {
	defer lease.Close()

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.New(io.Discard, "", 0),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(lease.Listener())
	}()

	s.logger.Infof("Serving %s on port %d", s.root, lease.Port)

	select {
	case err := <-serveErr:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.NewNetworkError("HTTP server stopped unexpectedly", err).WithContext("port", lease.Port)
	case <-ctx.Done():
	}

	s.logger.Infof("Shutting down server on port %d", lease.Port)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnf("Graceful shutdown timed out, closing connections: %v", err)
		_ = httpServer.Close()
	}
	<-serveErr

	s.logger.Infof("Server on port %d stopped", lease.Port)
	return nil
}

// URL is the address an operator opens to reach page on the lease.
func URL(lease *portlease.Lease, page string) string {
	u := url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort("localhost", strconv.Itoa(lease.Port)),
		Path:   "/" + page,
	}
	return u.String()
}

