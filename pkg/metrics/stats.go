package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StatsMetrics exports the same per-bucket counters pkg/statsagg
// accumulates in memory, as Prometheus counters scraped in real time
// rather than waiting for the next flush into the metadata store.
type StatsMetrics interface {
	ObserveRequest(bucketID, surface string, bytesServed int64)
}

type statsMetrics struct {
	requestsTotal *prometheus.CounterVec
	bytesTotal    *prometheus.CounterVec
}

// NewStatsMetrics returns a Prometheus-backed StatsMetrics, or nil if
// metrics are disabled (InitRegistry(false) or never called).
func NewStatsMetrics() StatsMetrics {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return &statsMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "byteserve_requests_total",
				Help: "Total number of served requests by bucket and wire surface",
			},
			[]string{"bucket_id", "surface"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "byteserve_bytes_served_total",
				Help: "Total bytes served by bucket and wire surface",
			},
			[]string{"bucket_id", "surface"},
		),
	}
}

func (m *statsMetrics) ObserveRequest(bucketID, surface string, bytesServed int64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(bucketID, surface).Inc()
	if bytesServed > 0 {
		m.bytesTotal.WithLabelValues(bucketID, surface).Add(float64(bytesServed))
	}
}
