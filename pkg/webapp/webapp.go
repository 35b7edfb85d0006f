// Package webapp is the session-based HTTP application deployed on the
// WEBAPP connector: servlets mounted on paths, filters applied to every
// request, and a session manager bound by cookie.
package webapp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/hostkit/pkg/deployment"
	"github.com/marmos91/hostkit/pkg/identity"
	"github.com/marmos91/hostkit/pkg/session"
)

// Servlet is a handler mounted on a chi path pattern.
type Servlet struct {
	Name    string
	Path    string
	Handler http.Handler

	// Secure servlets require an authenticated principal of the
	// connector's realm.
	Secure bool

	// Role, when set on a secure servlet, is required of the principal.
	Role string
}

// Filter wraps every request to the application, in registration order.
type Filter struct {
	Name       string
	Middleware func(http.Handler) http.Handler
}

// App is the web application. It implements deployment.Application,
// deployment.Lifecycle and io.Closer.
type App struct {
	cfg         session.Config
	servlets    []Servlet
	filters     []Filter
	persistence session.PersistenceStrategy
	listener    session.Listener

	sessions *session.Manager
}

var (
	_ deployment.Application = (*App)(nil)
	_ deployment.Lifecycle   = (*App)(nil)
)

// New creates the application. persistence and listener may be nil.
func New(cfg session.Config, servlets []Servlet, filters []Filter, persistence session.PersistenceStrategy, listener session.Listener) *App {
	return &App{
		cfg:         cfg,
		servlets:    servlets,
		filters:     filters,
		persistence: persistence,
		listener:    listener,
	}
}

// Sessions returns the session manager, nil before Build.
func (a *App) Sessions() *session.Manager { return a.sessions }

func (a *App) Build(_ context.Context, info *deployment.Info) (http.Handler, error) {
	if len(a.servlets) == 0 {
		return nil, fmt.Errorf("no servlets registered")
	}

	a.sessions = session.NewManager(a.cfg, a.persistence, a.listener)

	r := chi.NewRouter()
	r.Use(a.sessions.Middleware)
	for _, f := range a.filters {
		if f.Middleware == nil {
			return nil, fmt.Errorf("filter %s: nil middleware", f.Name)
		}
		r.Use(f.Middleware)
	}

	seen := make(map[string]string, len(a.servlets))
	for _, s := range a.servlets {
		if s.Handler == nil {
			return nil, fmt.Errorf("servlet %s: nil handler", s.Name)
		}
		if prev, dup := seen[s.Path]; dup {
			return nil, fmt.Errorf("servlet %s: path %s already mapped by %s", s.Name, s.Path, prev)
		}
		seen[s.Path] = s.Name

		h := s.Handler
		if s.Secure {
			if info.Identity == nil {
				return nil, fmt.Errorf("servlet %s requires authentication but %s has no realm", s.Name, info.Name)
			}
			if s.Role != "" {
				h = identity.RequireRole(s.Role)(h)
			}
			h = identity.Middleware(info.Identity)(h)
		}
		r.Handle(s.Path, h)
	}

	return r, nil
}

// Start restores persisted sessions and starts expiry.
func (a *App) Start(ctx context.Context) error {
	return a.sessions.Start(ctx)
}

// Stop persists or destroys the live sessions.
func (a *App) Stop(ctx context.Context) error {
	return a.sessions.Stop(ctx)
}

// Close releases the persistence strategy.
func (a *App) Close() error {
	if a.persistence == nil {
		return nil
	}
	return a.persistence.Close()
}
