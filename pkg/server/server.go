package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/marmos91/hostkit/internal/logger"
	"github.com/marmos91/hostkit/internal/telemetry"
	"github.com/marmos91/hostkit/pkg/config"
	"github.com/marmos91/hostkit/pkg/connector"
	"github.com/marmos91/hostkit/pkg/deployment"
	"github.com/marmos91/hostkit/pkg/etc"
	"github.com/marmos91/hostkit/pkg/identity"
	"github.com/marmos91/hostkit/pkg/metrics"
	"github.com/marmos91/hostkit/pkg/session"
	"github.com/marmos91/hostkit/pkg/webapp"
	"github.com/marmos91/hostkit/pkg/webservice"
	"github.com/marmos91/hostkit/pkg/workers"
)

// Connector names, also the keys of ConnectorsStatistics.
const (
	WebAppConnector     = "WEBAPP"
	WebServiceConnector = "WEBSERVICE"
	UDPConnector        = "UDP"
)

// State is the orchestrator lifecycle state.
type State int32

const (
	StateConstructed State = iota
	StateStarted
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateStarted:
		return "started"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// PopulateFunc registers the server's content on b. It runs once, inside
// New, and must not call Instance.
type PopulateFunc func(pool *workers.Pool, b *Builder, cfg *config.Config, etcFiles []string) error

// Server is the process-wide orchestrator. See the package documentation.
type Server struct {
	cfg      *config.Config
	pool     *workers.Pool
	etcFiles []string

	services          []webservice.Service
	serviceFilters    []func(http.Handler) http.Handler
	servlets          []webapp.Servlet
	filters           []webapp.Filter
	webAppListeners   []deployment.Listener
	webSvcListeners   []deployment.Listener
	persistence       session.PersistenceStrategy
	sessionListener   session.Listener
	identityProvider  identity.Provider
	packetListeners   []connector.PacketListener
	startedListeners  []Listener
	shutdownListeners []Listener
	webAppAccess      connector.AccessLogger
	webSvcAccess      connector.AccessLogger
	etcListener       func(etc.Event)

	udp   *connector.UDPListener
	stats *metrics.Registry

	// mu serializes Start and StopAll.
	mu         sync.Mutex
	state      atomic.Int32
	units      []*unit
	watcher    *etc.Watcher
	hookCancel func()
	done       chan struct{}
}

// New constructs the process's server. It fails with ErrDuplicateInstance
// while another server holds the slot. On success the server is published
// as Instance.
func New(cfg *config.Config, populate PopulateFunc) (*Server, error) {
	if cfg == nil {
		return nil, &ConfigurationError{Path: "config", Err: errors.New("nil configuration")}
	}

	// 1. Reserve the process slot
	if err := acquire(); err != nil {
		return nil, err
	}

	// 2. Discover ancillary configuration files
	etcFiles := etc.Discover(cfg.Etc.Directories, cfg.Etc.Filter)

	// 3. Let the caller register content on the shared pool
	pool := workers.New("server")
	b := &Builder{}
	if populate != nil {
		if err := populate(pool, b, cfg, etcFiles); err != nil {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			if perr := pool.Shutdown(ctx); perr != nil {
				logger.Warn("Worker pool did not drain", logger.KeyError, perr)
			}
			cancel()
			release(nil)
			return nil, fmt.Errorf("populate server: %w", err)
		}
	}

	// 4. Keep immutable copies of what was registered
	s := &Server{
		cfg:               cfg,
		pool:              pool,
		etcFiles:          snapshot(etcFiles),
		services:          snapshot(b.services),
		serviceFilters:    snapshot(b.serviceFilters),
		servlets:          snapshot(b.servlets),
		filters:           snapshot(b.filters),
		webAppListeners:   snapshot(b.webAppListeners),
		webSvcListeners:   snapshot(b.webSvcListeners),
		persistence:       b.persistence,
		sessionListener:   b.sessionListener,
		identityProvider:  b.identityProvider,
		packetListeners:   snapshot(b.packetListeners),
		startedListeners:  snapshot(b.startedListeners),
		shutdownListeners: snapshot(b.shutdownListeners),
		webAppAccess:      b.webAppAccess,
		webSvcAccess:      b.webSvcAccess,
		etcListener:       b.etcListener,
		stats:             metrics.NewRegistry(),
		done:              make(chan struct{}),
	}

	// 5. The UDP listener exists only when someone consumes datagrams
	if s.packetListeners != nil {
		s.udp = connector.NewUDPListener(s.udpConfig(), s.packetListeners, pool)
	}

	publish(s)

	logger.Info("Server constructed",
		"servlets", len(s.servlets),
		"web_services", len(s.services),
		"packet_listeners", len(s.packetListeners),
		"etc_files", len(s.etcFiles))
	return s, nil
}

// udpConfig binds the multicast group when one is configured, otherwise
// the listen address on the web service port.
func (s *Server) udpConfig() connector.UDPConfig {
	mc := s.cfg.Multicast
	udp := connector.UDPConfig{
		Interface:  mc.Interface,
		BufferSize: int(mc.BufferSize),
	}
	if mc.Address != "" {
		udp.Address = mc.Address
		udp.Port = mc.Port
	} else {
		udp.Address = s.cfg.ListenAddress
		udp.Port = s.cfg.WebService.Port
	}
	return udp
}

// State returns the lifecycle state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Config returns the configuration the server was built with.
func (s *Server) Config() *config.Config { return s.cfg }

// EtcFiles returns the ancillary files passed to the populate function.
func (s *Server) EtcFiles() []string { return snapshot(s.etcFiles) }

// Done is closed once StopAll has completed.
func (s *Server) Done() <-chan struct{} { return s.done }

// Start validates the data directory and brings the connectors up: UDP,
// then WEBAPP, then WEBSERVICE. The first failure is returned and leaves
// the server Failed with whatever had started still running; StopAll
// releases it. Started callbacks run last and cannot fail Start.
func (s *Server) Start(installShutdownHook bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != StateConstructed {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidState, st)
	}

	ctx, span := telemetry.StartSpan(context.Background(), "server.start")
	defer span.End()

	if err := s.start(ctx); err != nil {
		s.state.Store(int32(StateFailed))
		telemetry.RecordError(ctx, err)
		logger.Error("Server start failed", logger.KeyError, err)
		return err
	}

	if installShutdownHook {
		s.installShutdownHook()
	}

	s.state.Store(int32(StateStarted))
	logger.Info("Server started", logger.KeyCount, s.stats.Len())

	s.fire(ctx, "started", s.startedListeners)
	return nil
}

func (s *Server) start(ctx context.Context) error {
	// 1. Data directory must exist before any socket is opened
	if err := checkDataDirectory(s.cfg.DataDirectory); err != nil {
		return err
	}
	logger.Info("Data directory ready", logger.KeyDataDir, s.cfg.DataDirectory)

	// 2. UDP listener
	if s.udp != nil {
		if err := s.activateUDP(ctx); err != nil {
			return err
		}
	}

	// 3. Session-based web application
	if s.servlets != nil {
		app := webapp.New(s.sessionConfig(), s.servlets, s.filters, s.persistence, s.webAppSessionListener())
		if err := s.activateHTTP(ctx, WebAppConnector, s.cfg.WebApp, app, s.webAppListeners, s.webAppAccess); err != nil {
			return err
		}
	}

	// 4. Stateless web services
	if s.services != nil {
		app := webservice.New(s.services, s.serviceFilters...)
		if err := s.activateHTTP(ctx, WebServiceConnector, s.cfg.WebService, app, s.webSvcListeners, s.webSvcAccess); err != nil {
			return err
		}
	}

	// 5. Etc directory watch is best effort
	if s.cfg.Etc.Watch && len(s.cfg.Etc.Directories) > 0 {
		w, err := etc.NewWatcher(s.cfg.Etc.Directories, s.cfg.Etc.Filter, s.etcListener)
		if err != nil {
			logger.Warn("Cannot watch etc directories", logger.KeyError, err)
		} else {
			s.watcher = w
		}
	}

	return nil
}

func checkDataDirectory(path string) error {
	if path == "" {
		return &ConfigurationError{Path: "data_directory", Err: errors.New("not set")}
	}
	info, err := os.Stat(path)
	if err != nil {
		return &ConfigurationError{Path: path, Err: fmt.Errorf("data directory does not exist: %w", err)}
	}
	if !info.IsDir() {
		return &ConfigurationError{Path: path, Err: errors.New("data directory is not a directory")}
	}
	return nil
}

func (s *Server) sessionConfig() session.Config {
	return session.Config{
		CookieName:  s.cfg.Session.CookieName,
		IdleTimeout: s.cfg.Session.IdleTimeout,
	}
}

// StopAll fires the shutdown callbacks, tears every started unit down in
// reverse order, drains the worker pool and releases the process slot.
// Teardown failures are logged. Calling it again is a no-op.
func (s *Server) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateStopped {
		return
	}

	ctx, span := telemetry.StartSpan(context.Background(), "server.stop")
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.State(s.State().String()))

	logger.Info("Stopping server", logger.KeyState, s.State().String())

	s.fire(ctx, "shutdown", s.shutdownListeners)

	if s.hookCancel != nil {
		s.hookCancel()
		s.hookCancel = nil
	}

	var errs error
	if s.watcher != nil {
		errs = s.watcher.Close()
		s.watcher = nil
	}

	errs = multierr.Append(errs, s.teardown(ctx))

	poolCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	errs = multierr.Append(errs, s.pool.Shutdown(poolCtx))
	cancel()

	s.state.Store(int32(StateStopped))
	release(s)
	close(s.done)

	if errs != nil {
		telemetry.RecordError(ctx, errs)
		logger.Warn("Server stopped with errors", logger.KeyError, errs)
		return
	}
	logger.Info("Server stopped")
}

// fire runs every callback, isolating failures and panics.
func (s *Server) fire(ctx context.Context, kind string, listeners []Listener) {
	for i, l := range listeners {
		name := fmt.Sprintf("%s[%d]", kind, i)
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorCtx(ctx, "Lifecycle callback panicked",
						logger.KeyListener, name, logger.KeyPanic, r)
				}
			}()
			if err := l.Accept(s); err != nil {
				logger.ErrorCtx(ctx, "Lifecycle callback failed",
					logger.KeyListener, name, logger.KeyError, err)
			}
		}()
	}
}

// ============================================================================
// Enumeration
// ============================================================================

// ForEachService calls fn for every registered web service, in
// registration order.
func (s *Server) ForEachService(fn func(name string, svc webservice.Service)) {
	for _, svc := range s.services {
		fn(svc.Name(), svc)
	}
}

// ForEachServicePath calls fn with the mount path of every web service.
func (s *Server) ForEachServicePath(fn func(path string)) {
	for _, svc := range s.services {
		fn(svc.Path())
	}
}

// WebServiceNames returns the registered web service names, nil if none.
func (s *Server) WebServiceNames() []string {
	if s.services == nil {
		return nil
	}
	names := make([]string, 0, len(s.services))
	for _, svc := range s.services {
		names = append(names, svc.Name())
	}
	return names
}

// ConnectorsStatistics returns a copy of the statistics of the running
// HTTP connectors, keyed by connector name.
func (s *Server) ConnectorsStatistics() map[string]metrics.ConnectorStatistics {
	return s.stats.Entries()
}

// Statistics exposes the live statistics registry, e.g. to the management
// server.
func (s *Server) Statistics() *metrics.Registry {
	return s.stats
}

// PacketStats reports the UDP listener counters. ok is false when no UDP
// listener is configured.
func (s *Server) PacketStats() (stats connector.UDPStats, ok bool) {
	if s.udp == nil {
		return connector.UDPStats{}, false
	}
	return s.udp.Stats(), true
}
