package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusResolverTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mtps",
			Subsystem: "resolver",
			Name:      "transactions_total",
			Help:      "Number of source transactions resolved, by outcome",
		},
		[]string{"outcome"},
	)
	prometheusResolverGeneratedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mtps",
			Subsystem: "resolver",
			Name:      "generated_keys_total",
			Help:      "Number of owning keys taken from the generated sequence",
		},
	)
	prometheusResolverDerive = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mtps",
			Subsystem: "resolver",
			Name:      "derive_seconds",
			Help:      "Time to derive the owning keys of one block",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)
)
