package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/marmos91/hostkit/internal/demo"
	"github.com/marmos91/hostkit/internal/logger"
	"github.com/marmos91/hostkit/internal/telemetry"
	"github.com/marmos91/hostkit/pkg/api"
	"github.com/marmos91/hostkit/pkg/config"
	"github.com/marmos91/hostkit/pkg/identity"
	"github.com/marmos91/hostkit/pkg/metrics"
	metricsprom "github.com/marmos91/hostkit/pkg/metrics/prometheus"
	"github.com/marmos91/hostkit/pkg/server"
	"github.com/marmos91/hostkit/pkg/workers"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the hostkit server",
	Long: `Start the hostkit server in the foreground with the specified configuration.

The UDP listener starts first, then the web application connector, then the
web service connector. SIGINT or SIGTERM stops them in reverse order.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/hostkit/config.yaml.

Examples:
  # Start with default config
  hostkit start

  # Start with custom config file
  hostkit start --config /etc/hostkit/config.yaml

  # Start with environment variable overrides
  HOSTKIT_LOGGING_LEVEL=DEBUG hostkit start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "hostkit",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("Telemetry shutdown error", logger.KeyError, err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "hostkit",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.KeyError, err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	// Initialize metrics before the server so session metrics see the registry
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	mgmt := &management{cfg: cfg}
	populate := func(pool *workers.Pool, b *server.Builder, cfg *config.Config, etcFiles []string) error {
		if err := demo.Populate(pool, b, cfg, etcFiles); err != nil {
			return err
		}
		if cfg.Metrics.Enabled {
			b.StartedListener(server.ListenerFunc(mgmt.start))
			b.ShutdownListener(server.ListenerFunc(mgmt.stop))
		}
		return nil
	}

	srv, err := server.New(cfg, populate)
	if err != nil {
		return err
	}
	if err := srv.Start(true); err != nil {
		srv.StopAll()
		return err
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")
	<-srv.Done()
	logger.Info("Server stopped")
	return nil
}

// management runs the management API next to the connectors.
type management struct {
	cfg *config.Config

	server    *api.Server
	collector prometheus.Collector
	cancel    context.CancelFunc
	done      chan error
}

func (m *management) start(s *server.Server) error {
	provider, err := identity.NewRealmProvider(m.cfg.Identity)
	if err != nil {
		return err
	}

	deps := api.RouterDeps{
		Connectors: s.Statistics(),
		Identity:   provider,
	}
	if reg := metrics.GetRegistry(); reg != nil {
		deps.Gatherer = reg
	}
	m.collector = metricsprom.NewConnectorCollector(s.Statistics())

	m.server = api.NewServer(api.APIConfig{
		Address: m.cfg.Metrics.Address,
		Port:    m.cfg.Metrics.Port,
	}, deps)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan error, 1)
	go func() { m.done <- m.server.Start(ctx) }()

	readyCtx, readyCancel := context.WithTimeout(ctx, 5*time.Second)
	defer readyCancel()
	select {
	case err := <-m.done:
		m.cancel = nil
		cancel()
		return fmt.Errorf("management server: %w", err)
	case <-readyCtx.Done():
		return fmt.Errorf("management server: %w", readyCtx.Err())
	case <-waitReady(readyCtx, m.server):
		return nil
	}
}

func (m *management) stop(*server.Server) error {
	metricsprom.UnregisterCollector(m.collector)
	if m.cancel == nil {
		return nil
	}
	m.cancel()
	return <-m.done
}

func waitReady(ctx context.Context, srv *api.Server) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		if srv.WaitReady(ctx) == nil {
			close(ch)
		}
	}()
	return ch
}
