package server

import (
	"net/http"

	"github.com/marmos91/hostkit/pkg/connector"
	"github.com/marmos91/hostkit/pkg/deployment"
	"github.com/marmos91/hostkit/pkg/etc"
	"github.com/marmos91/hostkit/pkg/identity"
	"github.com/marmos91/hostkit/pkg/session"
	"github.com/marmos91/hostkit/pkg/webapp"
	"github.com/marmos91/hostkit/pkg/webservice"
)

// Listener observes server lifecycle transitions.
type Listener interface {
	Accept(s *Server) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(s *Server) error

func (f ListenerFunc) Accept(s *Server) error { return f(s) }

// Builder collects what the populate function registers. It is only valid
// during New; the server keeps copies of every list.
type Builder struct {
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
}

// WebService registers a stateless API resource on the WEBSERVICE connector.
func (b *Builder) WebService(svc webservice.Service) *Builder {
	b.services = append(b.services, svc)
	return b
}

// WebServiceFilter wraps every WEBSERVICE request, in registration order.
func (b *Builder) WebServiceFilter(mw func(http.Handler) http.Handler) *Builder {
	b.serviceFilters = append(b.serviceFilters, mw)
	return b
}

// Servlet registers a handler on the WEBAPP connector.
func (b *Builder) Servlet(s webapp.Servlet) *Builder {
	b.servlets = append(b.servlets, s)
	return b
}

// Filter registers a WEBAPP filter. Registering a name again replaces the
// earlier filter in place.
func (b *Builder) Filter(f webapp.Filter) *Builder {
	for i := range b.filters {
		if b.filters[i].Name == f.Name {
			b.filters[i] = f
			return b
		}
	}
	b.filters = append(b.filters, f)
	return b
}

// WebAppListener registers a deployment listener on the WEBAPP application.
func (b *Builder) WebAppListener(l deployment.Listener) *Builder {
	b.webAppListeners = append(b.webAppListeners, l)
	return b
}

// WebServiceListener registers a deployment listener on the WEBSERVICE
// application.
func (b *Builder) WebServiceListener(l deployment.Listener) *Builder {
	b.webSvcListeners = append(b.webSvcListeners, l)
	return b
}

// SessionPersistence sets where WEBAPP sessions survive restarts. Only the
// last strategy set is kept.
func (b *Builder) SessionPersistence(p session.PersistenceStrategy) *Builder {
	b.persistence = p
	return b
}

// SessionListener sets the observer of WEBAPP session creation and
// destruction. Only the last listener set is kept.
func (b *Builder) SessionListener(l session.Listener) *Builder {
	b.sessionListener = l
	return b
}

// IdentityProvider sets the resolver of connector realms.
func (b *Builder) IdentityProvider(p identity.Provider) *Builder {
	b.identityProvider = p
	return b
}

// PacketListener registers a consumer of UDP datagrams. Registering any
// enables the UDP listener.
func (b *Builder) PacketListener(l connector.PacketListener) *Builder {
	b.packetListeners = append(b.packetListeners, l)
	return b
}

// StartedListener registers a callback fired once Start succeeds.
func (b *Builder) StartedListener(l Listener) *Builder {
	b.startedListeners = append(b.startedListeners, l)
	return b
}

// ShutdownListener registers a callback fired first thing in StopAll.
func (b *Builder) ShutdownListener(l Listener) *Builder {
	b.shutdownListeners = append(b.shutdownListeners, l)
	return b
}

// WebAppAccessLogger receives one entry per WEBAPP request.
func (b *Builder) WebAppAccessLogger(a connector.AccessLogger) *Builder {
	b.webAppAccess = a
	return b
}

// WebServiceAccessLogger receives one entry per WEBSERVICE request.
func (b *Builder) WebServiceAccessLogger(a connector.AccessLogger) *Builder {
	b.webSvcAccess = a
	return b
}

// EtcListener is called for every change to a watched etc file. It only
// fires when etc watching is enabled in the configuration.
func (b *Builder) EtcListener(fn func(etc.Event)) *Builder {
	b.etcListener = fn
	return b
}

// snapshot returns a copy of s, or nil when s is empty.
func snapshot[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
