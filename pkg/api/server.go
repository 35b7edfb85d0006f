// Package api is the management HTTP server: health probes, connector
// statistics and Prometheus metrics for a running hostkit server.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/hostkit/internal/logger"
)

// Server provides the management HTTP server.
//
// Endpoints:
//   - GET /health: Liveness probe
//   - GET /health/ready: Readiness probe
//   - GET /connectors, /connectors/{name}: Connector statistics
//   - GET /metrics: Prometheus metrics (when a gatherer is configured)
//   - POST /auth/{realm}/token: Bearer token issuing (when a provider is configured)
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	config       APIConfig
	shutdownOnce sync.Once

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// NewServer creates a new management HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving
// requests.
func NewServer(config APIConfig, deps RouterDeps) *Server {
	config.applyDefaults()

	server := &http.Server{
		Addr:              net.JoinHostPort(config.Address, strconv.Itoa(config.Port)),
		Handler:           NewRouter(deps),
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}

	return &Server{
		server: server,
		config: config,
		ready:  make(chan struct{}),
	}
}

// Start binds the configured address and serves until the context is
// cancelled or the server fails.
//
// When the context is cancelled, Start initiates graceful shutdown and
// returns nil.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return errors.New("management server already started")
	}
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("management server listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Management server listening", logger.KeyAddress, ln.Addr().String())

		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Don't use the cancelled ctx as it would cause immediate shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("management server failed: %w", err)
	}
}

// WaitReady blocks until Start has bound its socket or ctx is done.
func (s *Server) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop initiates graceful shutdown of the management server.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("Management server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("management server shutdown error: %w", err)
			logger.Error("Management server shutdown error", logger.KeyError, err)
		} else {
			logger.Info("Management server stopped gracefully")
		}
	})
	return shutdownErr
}

// Addr returns the bound address, or nil before Start has bound.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
