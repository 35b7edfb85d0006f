// Package metrics holds the per-connector statistics registry and the
// optional process-wide Prometheus registry.
//
// Prometheus collection is opt-in: until InitRegistry is called IsEnabled
// reports false and constructors in pkg/metrics/prometheus return nil,
// which callers treat as "no metrics" at zero cost.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	promMu   sync.RWMutex
	promReg  *prometheus.Registry
	promInit bool
)

// InitRegistry creates the process-wide Prometheus registry with the Go
// runtime and process collectors attached. Calling it again returns the
// existing registry.
func InitRegistry() *prometheus.Registry {
	promMu.Lock()
	defer promMu.Unlock()

	if promInit {
		return promReg
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	promReg = reg
	promInit = true
	return promReg
}

// GetRegistry returns the registry created by InitRegistry, or nil.
func GetRegistry() *prometheus.Registry {
	promMu.RLock()
	defer promMu.RUnlock()
	return promReg
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	promMu.RLock()
	defer promMu.RUnlock()
	return promInit
}

// ResetRegistry drops the Prometheus registry. Tests only.
func ResetRegistry() {
	promMu.Lock()
	defer promMu.Unlock()
	promReg = nil
	promInit = false
}
