// Package deployment manages the lifecycle of one deployed HTTP
// application context: build, start, stop, undeploy.
//
// A Manager moves through Created → Deployed → Started → Stopped, and
// from Deployed or Stopped to Undeployed. Any other transition returns
// ErrInvalidState and leaves the manager untouched.
package deployment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/marmos91/hostkit/internal/logger"
	"github.com/marmos91/hostkit/pkg/identity"
)

// ErrInvalidState is returned for a transition the current state does not
// allow.
var ErrInvalidState = errors.New("invalid deployment state transition")

// State is the lifecycle state of a Manager.
type State int

const (
	Created State = iota
	Deployed
	Started
	Stopped
	Undeployed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Deployed:
		return "deployed"
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	case Undeployed:
		return "undeployed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Application is the deployable unit. Build assembles its request handler;
// it is called once, by Deploy.
//
// An Application may also implement Lifecycle (called on Start/Stop) and
// io.Closer (called on Undeploy).
type Application interface {
	Build(ctx context.Context, info *Info) (http.Handler, error)
}

// Lifecycle is implemented by applications holding resources that live
// only while the deployment is started.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Listener observes the application context.
type Listener interface {
	ContextInitialized(ctx context.Context, info *Info) error
	ContextDestroyed(ctx context.Context, info *Info)
}

// Info describes one deployment.
type Info struct {
	// Name is the deployment name, the connector's logical name.
	Name string

	App Application

	// Listeners are initialized in order on Start and destroyed in
	// reverse order on Stop.
	Listeners []Listener

	// Identity guards the application when set.
	Identity identity.Manager
}

// Manager drives one Info through its lifecycle.
type Manager struct {
	info *Info

	mu    sync.Mutex
	state State
	gate  *gate
}

// NewManager creates a manager in the Created state.
func NewManager(info *Info) *Manager {
	return &Manager{info: info, state: Created}
}

func (m *Manager) Name() string { return m.info.Name }

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) transitionError(to State) error {
	return fmt.Errorf("%w: %s %s -> %s", ErrInvalidState, m.info.Name, m.state, to)
}

// Deploy builds the application handler. Created → Deployed.
func (m *Manager) Deploy(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Created {
		return m.transitionError(Deployed)
	}
	if m.info.App == nil {
		return fmt.Errorf("deployment %s: no application", m.info.Name)
	}

	h, err := m.info.App.Build(ctx, m.info)
	if err != nil {
		return fmt.Errorf("deployment %s: build: %w", m.info.Name, err)
	}

	m.gate = &gate{next: h}
	m.state = Deployed
	logger.Debug("Deployment deployed", logger.KeyUnit, m.info.Name)
	return nil
}

// Start starts the application and initializes the listeners, then
// returns the handler to serve. Deployed → Started.
//
// When a listener fails, the listeners already initialized are destroyed
// in reverse order, the application is stopped and the manager stays
// Deployed.
func (m *Manager) Start(ctx context.Context) (http.Handler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Deployed {
		return nil, m.transitionError(Started)
	}

	lc, _ := m.info.App.(Lifecycle)
	if lc != nil {
		if err := lc.Start(ctx); err != nil {
			return nil, fmt.Errorf("deployment %s: start: %w", m.info.Name, err)
		}
	}

	for i, l := range m.info.Listeners {
		if err := l.ContextInitialized(ctx, m.info); err != nil {
			for j := i - 1; j >= 0; j-- {
				m.info.Listeners[j].ContextDestroyed(ctx, m.info)
			}
			if lc != nil {
				if serr := lc.Stop(ctx); serr != nil {
					logger.Warn("Deployment stop after failed start", logger.KeyUnit, m.info.Name, logger.KeyError, serr)
				}
			}
			return nil, fmt.Errorf("deployment %s: context listener: %w", m.info.Name, err)
		}
	}

	m.gate.open()
	m.state = Started
	logger.Debug("Deployment started", logger.KeyUnit, m.info.Name)
	return m.gate, nil
}

// Stop destroys the listeners in reverse order and stops the application.
// Started → Stopped. The returned handler answers 503 from then on.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Started {
		return m.transitionError(Stopped)
	}

	m.gate.close()
	for i := len(m.info.Listeners) - 1; i >= 0; i-- {
		m.info.Listeners[i].ContextDestroyed(ctx, m.info)
	}

	m.state = Stopped
	logger.Debug("Deployment stopped", logger.KeyUnit, m.info.Name)

	if lc, ok := m.info.App.(Lifecycle); ok {
		if err := lc.Stop(ctx); err != nil {
			return fmt.Errorf("deployment %s: stop: %w", m.info.Name, err)
		}
	}
	return nil
}

// Undeploy releases the application. Deployed or Stopped → Undeployed.
func (m *Manager) Undeploy() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Deployed && m.state != Stopped {
		return m.transitionError(Undeployed)
	}

	m.state = Undeployed
	logger.Debug("Deployment undeployed", logger.KeyUnit, m.info.Name)

	if c, ok := m.info.App.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("deployment %s: undeploy: %w", m.info.Name, err)
		}
	}
	return nil
}

// gate forwards to the application only while the deployment is started.
type gate struct {
	next http.Handler

	mu     sync.RWMutex
	active bool
}

func (g *gate) open() {
	g.mu.Lock()
	g.active = true
	g.mu.Unlock()
}

func (g *gate) close() {
	g.mu.Lock()
	g.active = false
	g.mu.Unlock()
}

func (g *gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.RLock()
	active := g.active
	g.mu.RUnlock()

	if !active {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	g.next.ServeHTTP(w, r)
}
