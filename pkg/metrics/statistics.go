package metrics

import "time"

// ConnectorStatistics is the read-only view of one active HTTP connector's
// runtime counters.
type ConnectorStatistics interface {
	// Name is the logical connector name ("WEBAPP", "WEBSERVICE").
	Name() string

	// Address is the bind address, Port the bound port.
	Address() string
	Port() int

	// Snapshot returns a consistent copy of the counters.
	Snapshot() Snapshot

	// Reset zeroes every counter except the active gauges.
	Reset()
}

// Snapshot is a point-in-time copy of a connector's counters.
type Snapshot struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Port    int    `json:"port"`

	StartedAt time.Time `json:"started_at"`

	// Requests counts completed requests; ActiveRequests those in flight.
	Requests       uint64 `json:"requests"`
	ActiveRequests int64  `json:"active_requests"`

	// ServerErrors counts 5xx responses and panics, ClientErrors 4xx.
	ServerErrors uint64 `json:"server_errors"`
	ClientErrors uint64 `json:"client_errors"`

	BytesWritten uint64 `json:"bytes_written"`

	TotalTime time.Duration `json:"total_time"`
	MaxTime   time.Duration `json:"max_time"`
	MinTime   time.Duration `json:"min_time"`

	// OpenConnections is the number of accepted, not yet closed,
	// connections; TotalConnections every connection ever accepted.
	OpenConnections  int64  `json:"open_connections"`
	TotalConnections uint64 `json:"total_connections"`
}

// MeanTime is the average request duration, zero before the first request.
func (s Snapshot) MeanTime() time.Duration {
	if s.Requests == 0 {
		return 0
	}
	return s.TotalTime / time.Duration(s.Requests)
}
