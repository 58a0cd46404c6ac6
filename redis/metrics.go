package redis

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	opsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keydb",
		Name:      "operations_total",
		Help:      "Store adapter operations by operation and outcome",
	}, []string{"op", "outcome"})

	batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "keydb",
		Name:      "batch_entries",
		Help:      "Number of SET instructions per committed batch",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})

	resetsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "keydb",
		Name:      "connection_resets_total",
		Help:      "Shared connection replacements",
	})

	stampedHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "keydb",
		Name:      "stamped_height",
		Help:      "Height stamped by the most recent successful batch commit",
	})
)

func init() {
	prometheus.MustRegister(opsTotal)
	prometheus.MustRegister(batchSize)
	prometheus.MustRegister(resetsTotal)
	prometheus.MustRegister(stampedHeight)
}

func observeOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	opsTotal.WithLabelValues(op, outcome).Inc()
}
