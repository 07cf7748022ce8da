package walker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusWalkerBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mtps",
			Subsystem: "walker",
			Name:      "blocks_total",
			Help:      "Number of blocks walked and committed",
		},
	)
	prometheusWalkerHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mtps",
			Subsystem: "walker",
			Name:      "height",
			Help:      "Number of blocks walked since the start of the chain",
		},
	)
	prometheusWalkerBlock = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mtps",
			Subsystem: "walker",
			Name:      "block_seconds",
			Help:      "Time to resolve, build, write and commit one block",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		},
	)
)
