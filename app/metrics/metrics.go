package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	fetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankpulse_provider_fetches_total",
			Help: "Total provider fetches by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	fetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rankpulse_provider_fetch_duration_seconds",
			Help:    "Provider fetch latency by provider",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	pullsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rankpulse_pulls_total",
			Help: "Total rank pulls by outcome",
		},
		[]string{"outcome"},
	)

	pullKeywords = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rankpulse_pull_keywords",
			Help:    "Keywords processed per pull",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	observationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rankpulse_observations_total",
			Help: "Total rank observations recorded",
		},
	)
)

var initOnce sync.Once

// Init registers the collectors. Must be called once at startup.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(fetchesTotal, fetchDuration, pullsTotal, pullKeywords, observationsTotal)
	})
}

// RecordFetch records one provider call with its outcome and latency.
func RecordFetch(provider, outcome string, duration time.Duration) {
	fetchesTotal.WithLabelValues(provider, outcome).Inc()
	fetchDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordPull records a completed pull and its keyword count.
func RecordPull(outcome string, keywords int) {
	pullsTotal.WithLabelValues(outcome).Inc()
	pullKeywords.Observe(float64(keywords))
}

// RecordObservation counts one persisted rank observation.
func RecordObservation() {
	observationsTotal.Inc()
}
