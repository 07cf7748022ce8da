package checkpoint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusCheckpointCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mtps",
			Subsystem: "checkpoint",
			Name:      "cycles_total",
			Help:      "Number of maintenance cycles run",
		},
	)
	prometheusCheckpointCleanings = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mtps",
			Subsystem: "checkpoint",
			Name:      "log_cleanings_total",
			Help:      "Number of log cleanings that reclaimed space",
		},
	)
	prometheusCheckpointDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mtps",
			Subsystem: "checkpoint",
			Name:      "cycle_seconds",
			Help:      "Time spent in one maintenance cycle",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)
)
