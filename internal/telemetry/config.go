package telemetry

// Config holds OpenTelemetry tracing configuration
type Config struct {
	// Enabled indicates whether tracing is enabled
	Enabled bool

	// ServiceName is the name reported to the trace backend
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Endpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	Endpoint string

	// Insecure disables TLS towards the collector
	Insecure bool

	// SampleRate is the trace sampling rate (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig returns a configuration with tracing disabled
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "hostkit",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// sampleRatio clamps the configured rate into [0, 1].
func (c Config) sampleRatio() float64 {
	switch {
	case c.SampleRate < 0:
		return 0
	case c.SampleRate > 1:
		return 1
	default:
		return c.SampleRate
	}
}
