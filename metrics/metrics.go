// Package metrics exposes Prometheus collectors for a running isto
// Store: rotating-tier occupancy, eviction counts, and save counts.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RotatingBytes is the current sum of DataItem sizes held in the
	// rotating tier.
	RotatingBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "isto",
		Subsystem: "rotating",
		Name:      "bytes",
		Help:      "Current total size in bytes of content held in the rotating tier.",
	})

	// EvictionsTotal counts rotating items deleted by the eviction
	// engine since process start.
	EvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "isto",
		Subsystem: "rotating",
		Name:      "evictions_total",
		Help:      "Total number of rotating items deleted by eviction.",
	})

	// SavesTotal counts items written by SaveData, labeled by tier.
	SavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "isto",
		Name:      "saves_total",
		Help:      "Total number of items successfully saved, by tier.",
	}, []string{"tier"})
)

func init() {
	prometheus.MustRegister(RotatingBytes, EvictionsTotal, SavesTotal)
}
