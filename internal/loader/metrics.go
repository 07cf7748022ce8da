package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusLoaderBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mtps",
			Subsystem: "loader",
			Name:      "blocks_stored_total",
			Help:      "Number of blocks inserted into the chain store",
		},
	)
	prometheusLoaderDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mtps",
			Subsystem: "loader",
			Name:      "blocks_duplicate_total",
			Help:      "Number of blocks read that were already stored",
		},
	)
)
