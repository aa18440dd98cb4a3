package scanner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "godudb",
		Subsystem: "scanner",
		Name:      "entries_emitted_total",
		Help:      "Entries emitted by the walker, by kind.",
	}, []string{"kind"})

	softErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "godudb",
		Subsystem: "scanner",
		Name:      "soft_errors_total",
		Help:      "Nodes whose metadata or listing could not be read.",
	})

	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "godudb",
		Subsystem: "scanner",
		Name:      "active_workers",
		Help:      "Fan-out goroutines currently processing a child.",
	})

	sendWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "godudb",
		Subsystem: "scanner",
		Name:      "batch_send_wait_seconds",
		Help:      "Time spent handing a batch to the persistence mailbox.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})
)
