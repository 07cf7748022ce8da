package writer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusWriterRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mtps",
			Subsystem: "writer",
			Name:      "records_total",
			Help:      "Number of atom records appended to the stream",
		},
	)
	prometheusWriterBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mtps",
			Subsystem: "writer",
			Name:      "bytes_total",
			Help:      "Number of bytes appended to the stream",
		},
	)
	prometheusWriterQueue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mtps",
			Subsystem: "writer",
			Name:      "queue_length",
			Help:      "Number of requests waiting in the writer queue",
		},
	)
	prometheusWriterSync = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mtps",
			Subsystem: "writer",
			Name:      "sync_seconds",
			Help:      "Time to flush and fsync the stream",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)
)
