package connector

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/marmos91/hostkit/internal/logger"
	"github.com/marmos91/hostkit/internal/telemetry"
	"github.com/marmos91/hostkit/pkg/metrics"
)

// RequestIDHeader carries the id assigned to each request. An incoming
// value is kept.
const RequestIDHeader = "X-Request-Id"

// MetricsHandler decorates a deployment's handler with request counters,
// connection counters, a request-scoped log context, a trace span and the
// optional access log. It is the connector's statistics entry.
type MetricsHandler struct {
	name   string
	next   http.Handler
	access AccessLogger

	endpointMu sync.RWMutex
	address    string
	port       int
	startedAt  time.Time

	requests     atomic.Uint64
	active       atomic.Int64
	serverErrors atomic.Uint64
	clientErrors atomic.Uint64
	bytes        atomic.Uint64
	totalNanos   atomic.Int64
	openConns    atomic.Int64
	totalConns   atomic.Uint64

	timeMu  sync.Mutex
	maxTime time.Duration
	minTime time.Duration
}

var _ metrics.ConnectorStatistics = (*MetricsHandler)(nil)

// NewMetricsHandler wraps next. access may be nil.
func NewMetricsHandler(name string, next http.Handler, access AccessLogger) *MetricsHandler {
	return &MetricsHandler{name: name, next: next, access: access}
}

// SetEndpoint records where the connector is listening and when it
// started. Called once the listener is bound.
func (h *MetricsHandler) SetEndpoint(address string, port int) {
	h.endpointMu.Lock()
	defer h.endpointMu.Unlock()
	h.address = address
	h.port = port
	h.startedAt = time.Now()
}

func (h *MetricsHandler) Name() string { return h.name }

func (h *MetricsHandler) Address() string {
	h.endpointMu.RLock()
	defer h.endpointMu.RUnlock()
	return h.address
}

func (h *MetricsHandler) Port() int {
	h.endpointMu.RLock()
	defer h.endpointMu.RUnlock()
	return h.port
}

func (h *MetricsHandler) Snapshot() metrics.Snapshot {
	h.endpointMu.RLock()
	s := metrics.Snapshot{
		Name:      h.name,
		Address:   h.address,
		Port:      h.port,
		StartedAt: h.startedAt,
	}
	h.endpointMu.RUnlock()

	s.Requests = h.requests.Load()
	s.ActiveRequests = h.active.Load()
	s.ServerErrors = h.serverErrors.Load()
	s.ClientErrors = h.clientErrors.Load()
	s.BytesWritten = h.bytes.Load()
	s.TotalTime = time.Duration(h.totalNanos.Load())
	s.OpenConnections = h.openConns.Load()
	s.TotalConnections = h.totalConns.Load()

	h.timeMu.Lock()
	s.MaxTime = h.maxTime
	s.MinTime = h.minTime
	h.timeMu.Unlock()

	return s
}

func (h *MetricsHandler) Reset() {
	h.requests.Store(0)
	h.serverErrors.Store(0)
	h.clientErrors.Store(0)
	h.bytes.Store(0)
	h.totalNanos.Store(0)
	h.totalConns.Store(0)

	h.timeMu.Lock()
	h.maxTime = 0
	h.minTime = 0
	h.timeMu.Unlock()
}

// ConnState is installed as the http.Server connection state hook.
func (h *MetricsHandler) ConnState(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		h.openConns.Add(1)
		h.totalConns.Add(1)
	case http.StateHijacked, http.StateClosed:
		h.openConns.Add(-1)
	}
}

func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.active.Add(1)

	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)

	ctx, span := telemetry.StartHTTPSpan(r, h.name)
	defer span.End()

	lc := logger.NewLogContext(h.name, clientIP(r.RemoteAddr)).WithRequest(r.Method, r.URL.Path)
	lc.RequestID = requestID
	lc.StartTime = start
	if telemetry.IsEnabled() {
		lc = lc.WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	}
	ctx = logger.WithContext(ctx, lc)

	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

	defer func() {
		h.active.Add(-1)

		rec := recover()
		status := ww.Status()
		if rec != nil {
			status = http.StatusInternalServerError
			if rec != http.ErrAbortHandler {
				logger.ErrorCtx(ctx, "HTTP handler panic", logger.KeyPanic, rec)
				if ww.Status() == 0 {
					http.Error(ww, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}
		}
		if status == 0 {
			status = http.StatusOK
		}

		elapsed := time.Since(start)
		h.record(status, ww.BytesWritten(), elapsed)

		span.SetAttributes(telemetry.HTTPStatus(status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		if h.access != nil {
			h.access.LogAccess(AccessEntry{
				Connector: h.name,
				RequestID: requestID,
				Method:    r.Method,
				Path:      r.URL.Path,
				Query:     r.URL.RawQuery,
				Protocol:  r.Proto,
				Status:    status,
				Bytes:     ww.BytesWritten(),
				Duration:  elapsed,
				ClientIP:  lc.ClientIP,
				UserAgent: r.UserAgent(),
				Referer:   r.Referer(),
				SessionID: lc.SessionID,
				Principal: lc.Principal,
				Time:      start,
			})
		}

		if rec == http.ErrAbortHandler {
			panic(rec)
		}
	}()

	h.next.ServeHTTP(ww, r.WithContext(ctx))
}

func (h *MetricsHandler) record(status, written int, elapsed time.Duration) {
	h.requests.Add(1)
	if written > 0 {
		h.bytes.Add(uint64(written))
	}
	h.totalNanos.Add(int64(elapsed))

	switch {
	case status >= 500:
		h.serverErrors.Add(1)
	case status >= 400:
		h.clientErrors.Add(1)
	}

	h.timeMu.Lock()
	if elapsed > h.maxTime {
		h.maxTime = elapsed
	}
	if h.minTime == 0 || elapsed < h.minTime {
		h.minTime = elapsed
	}
	h.timeMu.Unlock()
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
