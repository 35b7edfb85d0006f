package api

import "time"

// APIConfig configures the management HTTP server.
//
// The management server exposes health probes, connector statistics and
// Prometheus metrics. It is separate from the WEBAPP and WEBSERVICE
// connectors so scraping never competes with application traffic.
type APIConfig struct {
	// Address is the bind address. Default: all interfaces.
	Address string `mapstructure:"address" yaml:"address"`

	// Port is the HTTP port. Zero picks an ephemeral port.
	Port int `mapstructure:"port" validate:"omitempty,min=0,max=65535" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *APIConfig) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}
