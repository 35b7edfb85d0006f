// Package webservice is the stateless HTTP API deployed on the WEBSERVICE
// connector. Each Service owns a path prefix and registers its routes on a
// chi sub-router.
package webservice

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/hostkit/pkg/deployment"
	"github.com/marmos91/hostkit/pkg/identity"
)

// Service is one API resource.
type Service interface {
	// Name identifies the service in enumerations and logs.
	Name() string

	// Path is the mount prefix, e.g. "/status".
	Path() string

	// Routes registers the service's handlers relative to Path.
	Routes(r chi.Router)
}

type funcService struct {
	name   string
	path   string
	routes func(chi.Router)
}

func (s funcService) Name() string        { return s.name }
func (s funcService) Path() string        { return s.path }
func (s funcService) Routes(r chi.Router) { s.routes(r) }

// NewService builds a Service from its parts.
func NewService(name, path string, routes func(chi.Router)) Service {
	return funcService{name: name, path: path, routes: routes}
}

// App is the web service application. It implements
// deployment.Application.
type App struct {
	services []Service
	filters  []func(http.Handler) http.Handler
}

var _ deployment.Application = (*App)(nil)

// New creates the application. filters wrap every request in order.
func New(services []Service, filters ...func(http.Handler) http.Handler) *App {
	return &App{services: services, filters: filters}
}

func (a *App) Build(_ context.Context, info *deployment.Info) (http.Handler, error) {
	if len(a.services) == 0 {
		return nil, fmt.Errorf("no web services registered")
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteProblem(w, r, http.StatusNotFound, "no resource at "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteProblem(w, r, http.StatusMethodNotAllowed, r.Method+" not supported on "+r.URL.Path)
	})

	if info.Identity != nil {
		r.Use(identity.Middleware(info.Identity))
	}
	for _, f := range a.filters {
		r.Use(f)
	}

	names := make(map[string]bool, len(a.services))
	paths := make(map[string]string, len(a.services))
	for _, svc := range a.services {
		path := svc.Path()
		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("service %s: path %q must start with /", svc.Name(), path)
		}
		if names[svc.Name()] {
			return nil, fmt.Errorf("duplicate service name %s", svc.Name())
		}
		if prev, dup := paths[path]; dup {
			return nil, fmt.Errorf("service %s: path %s already mapped by %s", svc.Name(), path, prev)
		}
		names[svc.Name()] = true
		paths[path] = svc.Name()

		r.Route(path, svc.Routes)
	}

	return r, nil
}
