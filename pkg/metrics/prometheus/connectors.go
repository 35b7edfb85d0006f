package prometheus

import (
	"strconv"

	"github.com/marmos91/hostkit/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// SnapshotSource yields the current connector counters.
type SnapshotSource interface {
	Snapshots() []metrics.Snapshot
}

// connectorCollector exports connector statistics as const metrics on every
// scrape, so connectors that stopped simply disappear.
type connectorCollector struct {
	source SnapshotSource

	requests         *prometheus.Desc
	activeRequests   *prometheus.Desc
	errors           *prometheus.Desc
	bytesWritten     *prometheus.Desc
	requestSeconds   *prometheus.Desc
	maxRequestSecs   *prometheus.Desc
	openConnections  *prometheus.Desc
	totalConnections *prometheus.Desc
	startTime        *prometheus.Desc
}

// NewConnectorCollector creates a collector over source and registers it
// with the process-wide registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewConnectorCollector(source SnapshotSource) prometheus.Collector {
	if !metrics.IsEnabled() {
		return nil
	}

	c := newConnectorCollector(source)
	if err := metrics.GetRegistry().Register(c); err != nil {
		return nil
	}
	return c
}

// UnregisterCollector removes c from the process-wide registry. A nil c is
// ignored.
func UnregisterCollector(c prometheus.Collector) {
	if c == nil || !metrics.IsEnabled() {
		return
	}
	metrics.GetRegistry().Unregister(c)
}

func newConnectorCollector(source SnapshotSource) *connectorCollector {
	labels := []string{"connector", "port"}
	return &connectorCollector{
		source: source,
		requests: prometheus.NewDesc(
			"hostkit_connector_requests_total",
			"Total number of completed HTTP requests by connector",
			labels, nil,
		),
		activeRequests: prometheus.NewDesc(
			"hostkit_connector_active_requests",
			"HTTP requests currently in flight by connector",
			labels, nil,
		),
		errors: prometheus.NewDesc(
			"hostkit_connector_errors_total",
			"Total number of failed HTTP requests by connector and class",
			append(labels, "class"), nil, // "client", "server"
		),
		bytesWritten: prometheus.NewDesc(
			"hostkit_connector_response_bytes_total",
			"Total response body bytes written by connector",
			labels, nil,
		),
		requestSeconds: prometheus.NewDesc(
			"hostkit_connector_request_seconds_total",
			"Cumulative time spent serving requests by connector",
			labels, nil,
		),
		maxRequestSecs: prometheus.NewDesc(
			"hostkit_connector_request_max_seconds",
			"Longest request served by connector",
			labels, nil,
		),
		openConnections: prometheus.NewDesc(
			"hostkit_connector_open_connections",
			"Currently open client connections by connector",
			labels, nil,
		),
		totalConnections: prometheus.NewDesc(
			"hostkit_connector_connections_total",
			"Total number of accepted client connections by connector",
			labels, nil,
		),
		startTime: prometheus.NewDesc(
			"hostkit_connector_start_time_seconds",
			"Unix time the connector started listening",
			labels, nil,
		),
	}
}

func (c *connectorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requests
	ch <- c.activeRequests
	ch <- c.errors
	ch <- c.bytesWritten
	ch <- c.requestSeconds
	ch <- c.maxRequestSecs
	ch <- c.openConnections
	ch <- c.totalConnections
	ch <- c.startTime
}

func (c *connectorCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.source.Snapshots() {
		port := strconv.Itoa(s.Port)

		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(s.Requests), s.Name, port)
		ch <- prometheus.MustNewConstMetric(c.activeRequests, prometheus.GaugeValue, float64(s.ActiveRequests), s.Name, port)
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.ClientErrors), s.Name, port, "client")
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.ServerErrors), s.Name, port, "server")
		ch <- prometheus.MustNewConstMetric(c.bytesWritten, prometheus.CounterValue, float64(s.BytesWritten), s.Name, port)
		ch <- prometheus.MustNewConstMetric(c.requestSeconds, prometheus.CounterValue, s.TotalTime.Seconds(), s.Name, port)
		ch <- prometheus.MustNewConstMetric(c.maxRequestSecs, prometheus.GaugeValue, s.MaxTime.Seconds(), s.Name, port)
		ch <- prometheus.MustNewConstMetric(c.openConnections, prometheus.GaugeValue, float64(s.OpenConnections), s.Name, port)
		ch <- prometheus.MustNewConstMetric(c.totalConnections, prometheus.CounterValue, float64(s.TotalConnections), s.Name, port)
		if !s.StartedAt.IsZero() {
			ch <- prometheus.MustNewConstMetric(c.startTime, prometheus.GaugeValue, float64(s.StartedAt.UnixNano())/1e9, s.Name, port)
		}
	}
}
