package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use these keys consistently
// so log lines from every connector can be correlated.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Lifecycle
	// ========================================================================
	KeyConnector = "connector" // WEBAPP, WEBSERVICE, UDP
	KeyState     = "state"     // Orchestrator or deployment state
	KeyUnit      = "unit"      // Deployment unit being started/stopped
	KeyListener  = "listener"  // Lifecycle callback name
	KeyDataDir   = "data_dir"  // Data directory
	KeyEtcFile   = "etc_file"  // Discovered ancillary configuration file
	KeyCount     = "count"     // Generic item count
	KeyComponent = "component" // Subsystem emitting the line
	KeyAddress   = "address"   // Bound or requested address
	KeyPort      = "port"      // Bound or requested port
	KeyRealm     = "realm"     // Identity realm
	KeyService   = "service"   // Web service name
	KeyStore     = "store"     // Session persistence strategy
	KeyTimeout   = "timeout"   // Graceful shutdown timeout
	KeyPanic     = "panic"     // Recovered panic value

	// ========================================================================
	// Requests
	// ========================================================================
	KeyRequestID  = "request_id"
	KeyMethod     = "method"
	KeyPath       = "path"
	KeyStatus     = "status"
	KeyBytes      = "bytes"
	KeyClientIP   = "client_ip"
	KeyClientPort = "client_port"
	KeySessionID  = "session_id"
	KeyPrincipal  = "principal"
	KeyUserAgent  = "user_agent"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

func Connector(name string) slog.Attr {
	return slog.String(KeyConnector, name)
}

func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

func Unit(name string) slog.Attr {
	return slog.String(KeyUnit, name)
}

func DataDir(p string) slog.Attr {
	return slog.String(KeyDataDir, p)
}

func EtcFile(p string) slog.Attr {
	return slog.String(KeyEtcFile, p)
}

func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

func Component(c string) slog.Attr {
	return slog.String(KeyComponent, c)
}

func Address(a string) slog.Attr {
	return slog.String(KeyAddress, a)
}

func Port(p int) slog.Attr {
	return slog.Int(KeyPort, p)
}

func Realm(r string) slog.Attr {
	return slog.String(KeyRealm, r)
}

func Service(name string) slog.Attr {
	return slog.String(KeyService, name)
}

func Store(name string) slog.Attr {
	return slog.String(KeyStore, name)
}

func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

func Method(m string) slog.Attr {
	return slog.String(KeyMethod, m)
}

func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

func ClientIP(ip string) slog.Attr {
	return slog.String(KeyClientIP, ip)
}

func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

func Principal(p string) slog.Attr {
	return slog.String(KeyPrincipal, p)
}

func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns an error attribute, or an empty attribute for a nil error so
// callers can pass it unconditionally.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Panic formats a recovered panic value.
func Panic(v any) slog.Attr {
	return slog.Any(KeyPanic, v)
}
