// Package demo is the content the hostkit binary serves: a small session
// web application, a status API and a datagram counter. It exercises every
// extension point of the server builder.
package demo

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/hostkit/internal/logger"
	"github.com/marmos91/hostkit/pkg/config"
	"github.com/marmos91/hostkit/pkg/connector"
	"github.com/marmos91/hostkit/pkg/deployment"
	"github.com/marmos91/hostkit/pkg/etc"
	"github.com/marmos91/hostkit/pkg/identity"
	"github.com/marmos91/hostkit/pkg/server"
	"github.com/marmos91/hostkit/pkg/session"
	sessionstore "github.com/marmos91/hostkit/pkg/session/store"
	"github.com/marmos91/hostkit/pkg/webapp"
	"github.com/marmos91/hostkit/pkg/webservice"
	"github.com/marmos91/hostkit/pkg/workers"
)

// Populate registers the demo content. The identity provider is built from
// the configured realms and sessions persist to the configured store.
func Populate(pool *workers.Pool, b *server.Builder, cfg *config.Config, etcFiles []string) error {
	provider, err := identity.NewRealmProvider(cfg.Identity)
	if err != nil {
		return fmt.Errorf("identity realms: %w", err)
	}
	b.IdentityProvider(provider)

	store, err := sessionstore.New(&cfg.Session.Store)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	b.SessionPersistence(store)

	d := &demo{pool: pool, etcFiles: etcFiles}

	b.Servlet(webapp.Servlet{Name: "index", Path: "/", Handler: http.HandlerFunc(d.index)})
	b.Servlet(webapp.Servlet{Name: "etc", Path: "/etc", Handler: http.HandlerFunc(d.listEtc)})
	if cfg.WebApp.Realm != "" {
		b.Servlet(webapp.Servlet{
			Name:    "whoami",
			Path:    "/whoami",
			Secure:  true,
			Handler: http.HandlerFunc(d.whoami),
		})
	}
	b.Filter(webapp.Filter{Name: "nocache", Middleware: middleware.NoCache})

	b.WebService(webservice.NewService("status", "/status", d.statusRoutes))
	b.WebService(webservice.NewService("echo", "/echo", d.echoRoutes))
	b.WebServiceFilter(middleware.SetHeader("X-Served-By", "hostkit"))

	b.PacketListener(connector.PacketListenerFunc(d.acceptPacket))

	b.WebAppAccessLogger(connector.LogAccessLogger{})
	b.WebServiceAccessLogger(connector.LogAccessLogger{})
	b.SessionListener(&d.sessions)
	b.EtcListener(d.etcChanged)
	b.WebAppListener(contextLogger{})
	b.WebServiceListener(contextLogger{})

	b.StartedListener(server.ListenerFunc(d.started))
	b.ShutdownListener(server.ListenerFunc(func(*server.Server) error {
		logger.Info("Demo shutting down", logger.KeyCount, int(d.packets.Load()))
		return nil
	}))
	return nil
}

type demo struct {
	pool     *workers.Pool
	etcFiles []string

	sessions sessionCounter
	packets  atomic.Uint64

	mu         sync.Mutex
	lastPacket *packetInfo
}

type packetInfo struct {
	Peer       string    `json:"peer"`
	Size       int       `json:"size"`
	ReceivedAt time.Time `json:"received_at"`
}

// sessionCounter tracks live sessions for the status API.
type sessionCounter struct {
	live atomic.Int64
}

func (c *sessionCounter) SessionCreated(*session.Session)   { c.live.Add(1) }
func (c *sessionCounter) SessionDestroyed(*session.Session) { c.live.Add(-1) }

// ============================================================================
// Web application
// ============================================================================

func (d *demo) index(w http.ResponseWriter, r *http.Request) {
	s := session.Get(r.Context(), true)
	visits := 1
	if v, ok := s.Get("visits"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			visits = n + 1
		}
	}
	s.Set("visits", strconv.Itoa(visits))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, "<h1>hostkit</h1><p>Visit %d of session %s.</p>\n",
		visits, html.EscapeString(s.ID()))
}

func (d *demo) listEtc(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, f := range d.etcFiles {
		_, _ = fmt.Fprintln(w, filepath.Base(f))
	}
}

func (d *demo) whoami(w http.ResponseWriter, r *http.Request) {
	p := identity.PrincipalFromContext(r.Context())
	if p == nil {
		http.Error(w, "no principal", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "%s@%s\n", p.Name, p.Realm)
}

// ============================================================================
// Web services
// ============================================================================

// StatusResponse is served by GET /status.
type StatusResponse struct {
	State          string        `json:"state"`
	Connectors     []string      `json:"connectors"`
	WebServices    []string      `json:"web_services"`
	LiveSessions   int64         `json:"live_sessions"`
	PacketsHandled uint64        `json:"packets_handled"`
	LastPacket     *packetInfo   `json:"last_packet,omitempty"`
	Uptime         time.Duration `json:"uptime_ns"`
}

func (d *demo) statusRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		srv := server.Instance()
		if srv == nil {
			webservice.WriteProblem(w, r, http.StatusServiceUnavailable, "server is not running")
			return
		}

		resp := StatusResponse{
			State:          srv.State().String(),
			Connectors:     srv.Statistics().Names(),
			WebServices:    srv.WebServiceNames(),
			LiveSessions:   d.sessions.live.Load(),
			PacketsHandled: d.packets.Load(),
		}
		d.mu.Lock()
		if d.lastPacket != nil {
			last := *d.lastPacket
			resp.LastPacket = &last
		}
		d.mu.Unlock()
		if stats, ok := srv.ConnectorsStatistics()[server.WebServiceConnector]; ok {
			resp.Uptime = time.Since(stats.Snapshot().StartedAt)
		}

		webservice.WriteJSON(w, http.StatusOK, resp)
	})

	r.Get("/services", func(w http.ResponseWriter, r *http.Request) {
		srv := server.Instance()
		if srv == nil {
			webservice.WriteProblem(w, r, http.StatusServiceUnavailable, "server is not running")
			return
		}
		paths := map[string]string{}
		srv.ForEachService(func(name string, svc webservice.Service) {
			paths[name] = svc.Path()
		})
		webservice.WriteJSON(w, http.StatusOK, paths)
	})
}

// EchoRequest is the body of POST /echo.
type EchoRequest struct {
	Message string `json:"message"`
}

func (d *demo) echoRoutes(r chi.Router) {
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		var req EchoRequest
		if !webservice.DecodeJSON(w, r, &req) {
			return
		}
		if req.Message == "" {
			webservice.WriteProblem(w, r, http.StatusUnprocessableEntity, "message is required")
			return
		}
		webservice.WriteJSON(w, http.StatusOK, req)
	})
}

// ============================================================================
// Datagrams and lifecycle
// ============================================================================

func (d *demo) acceptPacket(ctx context.Context, pkt connector.Packet) error {
	d.packets.Add(1)

	info := &packetInfo{Size: len(pkt.Data), ReceivedAt: pkt.ReceivedAt}
	if pkt.Peer != nil {
		info.Peer = pkt.Peer.String()
	}
	d.mu.Lock()
	d.lastPacket = info
	d.mu.Unlock()

	logger.DebugCtx(ctx, "Datagram received", logger.KeyClientIP, info.Peer, logger.KeyBytes, info.Size)
	return nil
}

// contextLogger reports deployments as they come and go.
type contextLogger struct{}

func (contextLogger) ContextInitialized(ctx context.Context, info *deployment.Info) error {
	logger.InfoCtx(ctx, "Context initialized", logger.KeyUnit, info.Name)
	return nil
}

func (contextLogger) ContextDestroyed(ctx context.Context, info *deployment.Info) {
	logger.InfoCtx(ctx, "Context destroyed", logger.KeyUnit, info.Name)
}

func (d *demo) etcChanged(ev etc.Event) {
	logger.Info("Etc file change noticed, restart to apply", logger.KeyEtcFile, ev.Path)
}

func (d *demo) started(s *server.Server) error {
	for _, snap := range s.Statistics().Snapshots() {
		logger.Info("Serving",
			logger.KeyConnector, snap.Name,
			logger.KeyAddress, snap.Address,
			logger.KeyPort, snap.Port)
	}
	if stats, ok := s.PacketStats(); ok {
		logger.Info("Listening for datagrams", logger.KeyCount, int(stats.Received))
	}
	return nil
}
