// Package metrics exposes a Prometheus registry for process-level
// observability, grounded on the teacher's pkg/metrics/prometheus
// package: a toggleable registry plus one metrics struct per
// component that degrades to a nil-safe no-op when metrics are off.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
)

// InitRegistry enables the package-level registry. Call once at
// startup before constructing any component metrics; components
// constructed before this call (or when enabled is false) get a nil
// registry and their metrics helpers become no-ops.
func InitRegistry(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		registry = nil
		return
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
}

// IsEnabled reports whether InitRegistry(true) has run.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return registry != nil
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// Handler returns the /metrics HTTP handler for the active registry,
// or nil if metrics are disabled.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
