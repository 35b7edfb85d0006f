package connector

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

// DefaultIdleTimeout closes keep-alive connections idle for this long when
// the configuration leaves it unset.
const DefaultIdleTimeout = 10 * time.Second

// ListenerConfig configures one HTTP listener.
type ListenerConfig struct {
	// Name is the logical connector name, used in logs.
	Name string

	Address string
	Port    int

	Handler http.Handler

	IdleTimeout    time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxHeaderBytes int

	// ConnState, when set, observes connection state changes.
	ConnState func(net.Conn, http.ConnState)
}

// Listener is a bound TCP socket served by an http.Server.
type Listener struct {
	cfg    ListenerConfig
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
	started  bool

	serveDone    chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error
}

// NewListener creates a listener. It does not bind until Start.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}

	return &Listener{
		cfg: cfg,
		server: &http.Server{
			Handler:           cfg.Handler,
			IdleTimeout:       cfg.IdleTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
			ConnState:         cfg.ConnState,
		},
		serveDone: make(chan struct{}),
	}
}

// Start binds the socket synchronously, so a bind failure is returned to
// the caller, then serves on a background goroutine.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return fmt.Errorf("listener %s already started", l.cfg.Name)
	}

	addr := net.JoinHostPort(l.cfg.Address, strconv.Itoa(l.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	l.listener = ln
	l.started = true

	go func() {
		defer close(l.serveDone)
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP listener stopped unexpectedly",
				logger.KeyConnector, l.cfg.Name, logger.KeyError, err)
		}
	}()

	logger.Info("HTTP listener started",
		logger.KeyConnector, l.cfg.Name,
		logger.KeyAddress, ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Port returns the bound port, or the configured one before Start.
func (l *Listener) Port() int {
	if tcp, ok := l.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return l.cfg.Port
}

// Stop drains in-flight requests until ctx expires, then closes the
// remaining connections. It always waits for the serve goroutine and is
// safe to call more than once.
func (l *Listener) Stop(ctx context.Context) error {
	l.mu.Lock()
	started := l.started
	l.mu.Unlock()

	if !started {
		return nil
	}

	l.shutdownOnce.Do(func() {
		err := l.server.Shutdown(ctx)
		if err != nil {
			logger.Warn("HTTP listener graceful shutdown incomplete, closing connections",
				logger.KeyConnector, l.cfg.Name, logger.KeyError, err)
			if cerr := l.server.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
		<-l.serveDone
		l.shutdownErr = err

		logger.Info("HTTP listener stopped", logger.KeyConnector, l.cfg.Name)
	})
	return l.shutdownErr
}
