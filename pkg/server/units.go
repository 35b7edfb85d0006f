package server

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/multierr"

	"github.com/marmos91/hostkit/internal/logger"
	"github.com/marmos91/hostkit/internal/telemetry"
	"github.com/marmos91/hostkit/pkg/config"
	"github.com/marmos91/hostkit/pkg/connector"
	"github.com/marmos91/hostkit/pkg/deployment"
	metricsprom "github.com/marmos91/hostkit/pkg/metrics/prometheus"
	"github.com/marmos91/hostkit/pkg/session"
)

// unit is one activated connector. Units are appended in activation order
// as soon as they own something to release, so a failed Start still leaves
// StopAll a complete list.
type unit struct {
	name string

	udp *connector.UDPListener

	manager  *deployment.Manager
	listener *connector.Listener
}

func (s *Server) activateUDP(ctx context.Context) error {
	s.units = append(s.units, &unit{name: UDPConnector, udp: s.udp})

	if err := s.udp.CheckStarted(ctx); err != nil {
		return &BindError{Connector: UDPConnector, Address: s.udp.Endpoint(), Err: err}
	}

	logger.Info("Connector started",
		logger.KeyConnector, UDPConnector,
		logger.KeyAddress, s.udp.Addr().String())
	return nil
}

// activateHTTP deploys app, wraps its handler with the connector's
// statistics and binds the listener. The statistics entry is registered
// once the socket is bound.
func (s *Server) activateHTTP(
	ctx context.Context,
	name string,
	cc config.ConnectorConfig,
	app deployment.Application,
	listeners []deployment.Listener,
	access connector.AccessLogger,
) error {
	ctx, span := telemetry.StartSpan(ctx, "server.activate")
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.Connector(name))

	info := &deployment.Info{Name: name, App: app, Listeners: listeners}

	// 1. Resolve the connector's realm
	if cc.Realm != "" && s.identityProvider != nil {
		m, err := s.identityProvider.IdentityManager(cc.Realm)
		if err != nil {
			return &DeploymentError{Connector: name, Err: fmt.Errorf("realm %s: %w", cc.Realm, err)}
		}
		info.Identity = m
	}

	// 2. Deploy and start the application
	u := &unit{name: name, manager: deployment.NewManager(info)}
	s.units = append(s.units, u)

	if err := u.manager.Deploy(ctx); err != nil {
		return &DeploymentError{Connector: name, Err: err}
	}
	handler, err := u.manager.Start(ctx)
	if err != nil {
		return &DeploymentError{Connector: name, Err: err}
	}

	// 3. Bind the listener
	address := s.cfg.ConnectorAddress(cc)
	stats := connector.NewMetricsHandler(name, handler, access)
	ln := connector.NewListener(connector.ListenerConfig{
		Name:           name,
		Address:        address,
		Port:           cc.Port,
		Handler:        stats,
		IdleTimeout:    cc.IdleTimeout,
		ReadTimeout:    cc.ReadTimeout,
		WriteTimeout:   cc.WriteTimeout,
		MaxHeaderBytes: int(cc.MaxHeaderBytes),
		ConnState:      stats.ConnState,
	})
	if err := ln.Start(); err != nil {
		return &BindError{
			Connector: name,
			Address:   net.JoinHostPort(address, strconv.Itoa(cc.Port)),
			Err:       err,
		}
	}
	u.listener = ln

	// 4. Publish statistics
	stats.SetEndpoint(address, ln.Port())
	s.stats.Register(stats)

	logger.Info("Connector started",
		logger.KeyConnector, name,
		logger.KeyAddress, ln.Addr().String(),
		logger.KeyRealm, cc.Realm)
	return nil
}

// webAppSessionListener fans session events out to the registered listener
// and the session metrics.
func (s *Server) webAppSessionListener() session.Listener {
	var ls session.Listeners
	if s.sessionListener != nil {
		ls = append(ls, s.sessionListener)
	}
	if m := metricsprom.NewSessionMetrics(); m != nil {
		ls = append(ls, m)
	}
	if len(ls) == 0 {
		return nil
	}
	return ls
}

// teardown releases units in three passes. The UDP socket closes first so
// no datagram is dispatched while applications shut down. Applications are
// then stopped in reverse activation order, and finally the HTTP listeners
// drain and close, also in reverse.
func (s *Server) teardown(ctx context.Context) error {
	var errs error

	for _, u := range s.units {
		if u.udp != nil {
			u.udp.Shutdown()
			logger.Info("Connector stopped", logger.KeyConnector, u.name)
		}
	}

	for i := len(s.units) - 1; i >= 0; i-- {
		if u := s.units[i]; u.manager != nil {
			errs = multierr.Append(errs, s.undeploy(ctx, u))
		}
	}

	for i := len(s.units) - 1; i >= 0; i-- {
		u := s.units[i]
		if u.listener == nil {
			continue
		}

		stopCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		if err := u.listener.Stop(stopCtx); err != nil {
			logger.Warn("Connector did not drain",
				logger.KeyConnector, u.name, logger.KeyTimeout, s.cfg.ShutdownTimeout, logger.KeyError, err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", u.name, err))
		}
		cancel()

		s.stats.Unregister(u.name)
		logger.Info("Connector stopped", logger.KeyConnector, u.name)
	}

	s.units = nil
	return errs
}

func (s *Server) undeploy(ctx context.Context, u *unit) error {
	var errs error

	if u.manager.State() == deployment.Started {
		stopCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		if err := u.manager.Stop(stopCtx); err != nil {
			logger.Warn("Cannot stop deployment", logger.KeyUnit, u.name, logger.KeyError, err)
			errs = multierr.Append(errs, fmt.Errorf("%s: stop: %w", u.name, err))
		}
		cancel()
	}

	if st := u.manager.State(); st == deployment.Deployed || st == deployment.Stopped {
		if err := u.manager.Undeploy(); err != nil {
			logger.Warn("Cannot undeploy", logger.KeyUnit, u.name, logger.KeyError, err)
			errs = multierr.Append(errs, fmt.Errorf("%s: undeploy: %w", u.name, err))
		}
	}

	return errs
}
