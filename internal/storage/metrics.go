package storage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registry holds the storage collectors. Product code mounts it next to
	// its own registry.
	Registry = prometheus.NewRegistry()

	statementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "membership",
			Subsystem: "storage",
			Name:      "statements_total",
			Help:      "Total number of executed statements.",
		},
		[]string{"backend", "verb", "outcome"},
	)

	statementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "membership",
			Subsystem: "storage",
			Name:      "statement_duration_seconds",
			Help:      "Duration of executed statements.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~200ms
		},
		[]string{"backend", "verb"},
	)
)

func init() {
	Registry.MustRegister(statementsTotal, statementDuration)
}

func observe(backend Backend, verb Verb, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	statementsTotal.WithLabelValues(string(backend), verb.String(), outcome).Inc()
	statementDuration.WithLabelValues(string(backend), verb.String()).Observe(time.Since(start).Seconds())
}
