package persist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "godudb",
		Subsystem: "persist",
		Name:      "batches_total",
		Help:      "Entry batches handed to the store, by outcome.",
	}, []string{"outcome"})

	entriesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "godudb",
		Subsystem: "persist",
		Name:      "entries_written_total",
		Help:      "Entries committed to the store.",
	})

	insertSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "godudb",
		Subsystem: "persist",
		Name:      "batch_insert_seconds",
		Help:      "Latency of one transactional batch insert.",
		Buckets:   prometheus.DefBuckets,
	})

	mailboxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "godudb",
		Subsystem: "persist",
		Name:      "mailbox_depth",
		Help:      "Batches waiting in the persistence mailbox.",
	})
)
