package builder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusBuilderSignatures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mtps",
			Subsystem: "builder",
			Name:      "signatures_total",
			Help:      "Number of signatures produced",
		},
	)
	prometheusBuilderBuild = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mtps",
			Subsystem: "builder",
			Name:      "build_seconds",
			Help:      "Time to build and sign one atom record",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
		},
	)
)
