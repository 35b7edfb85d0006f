package connector

import (
	"time"

	"github.com/marmos91/hostkit/internal/logger"
)

// AccessEntry describes one completed HTTP request.
type AccessEntry struct {
	Connector string
	RequestID string
	Method    string
	Path      string
	Query     string
	Protocol  string
	Status    int
	Bytes     int
	Duration  time.Duration
	ClientIP  string
	UserAgent string
	Referer   string
	SessionID string
	Principal string
	Time      time.Time
}

// AccessLogger receives an entry for every request a connector served.
// Implementations must be safe for concurrent use.
type AccessLogger interface {
	LogAccess(AccessEntry)
}

// AccessLoggerFunc adapts a function to AccessLogger.
type AccessLoggerFunc func(AccessEntry)

func (f AccessLoggerFunc) LogAccess(e AccessEntry) { f(e) }

// LogAccessLogger writes access entries through the process logger at INFO.
type LogAccessLogger struct{}

func (LogAccessLogger) LogAccess(e AccessEntry) {
	args := []any{
		logger.KeyConnector, e.Connector,
		logger.KeyRequestID, e.RequestID,
		logger.KeyMethod, e.Method,
		logger.KeyPath, e.Path,
		logger.KeyStatus, e.Status,
		logger.KeyBytes, e.Bytes,
		logger.KeyDurationMs, float64(e.Duration.Microseconds()) / 1000,
		logger.KeyClientIP, e.ClientIP,
	}
	if e.UserAgent != "" {
		args = append(args, logger.KeyUserAgent, e.UserAgent)
	}
	if e.SessionID != "" {
		args = append(args, logger.KeySessionID, e.SessionID)
	}
	if e.Principal != "" {
		args = append(args, logger.KeyPrincipal, e.Principal)
	}
	logger.Info("HTTP access", args...)
}
