package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for one HTTP request or
// UDP datagram handled by a connector.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	RequestID string    // chi request ID or datagram sequence
	Connector string    // WEBAPP, WEBSERVICE, UDP
	Method    string    // HTTP method
	Path      string    // Request path
	ClientIP  string    // Client IP address (without port)
	SessionID string    // Web application session, when one is bound
	Principal string    // Authenticated account name
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a request arriving on connector.
func NewLogContext(connector, clientIP string) *LogContext {
	return &LogContext{
		Connector: connector,
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithRequest returns a copy with the HTTP method and path set
func (lc *LogContext) WithRequest(method, path string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Method = method
		clone.Path = path
	}
	return clone
}

// WithSession returns a copy bound to a web application session
func (lc *LogContext) WithSession(sessionID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SessionID = sessionID
	}
	return clone
}

// WithPrincipal returns a copy carrying the authenticated account name
func (lc *LogContext) WithPrincipal(name string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Principal = name
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
