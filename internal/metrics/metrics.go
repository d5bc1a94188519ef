// Package metrics records Prometheus metrics for populate runs and store writes.
//
// Metrics are registered lazily by InitMetrics; until then every Record call is
// a no-op, so library users that do not expose Prometheus pay nothing.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes used as label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

var (
	populateTotal    *prometheus.CounterVec
	populateDuration prometheus.Histogram
	keysGenerated    prometheus.Counter
	storeWritesTotal *prometheus.CounterVec

	metricsOnce       sync.Once
	metricsRegistered atomic.Bool
)

// Recorder records metrics. The zero value is ready to use.
type Recorder struct{}

// NewRecorder creates a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// InitMetrics registers all metrics with the default registry.
func InitMetrics() {
	metricsOnce.Do(func() {
		populateTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multisecret_populate_total",
				Help: "Total number of populate runs by outcome",
			},
			[]string{"outcome"},
		)

		populateDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "multisecret_populate_duration_seconds",
				Help:    "Duration of populate runs in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
		)

		keysGenerated = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "multisecret_keys_generated_total",
				Help: "Total number of secret values generated",
			},
		)

		storeWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "multisecret_store_writes_total",
				Help: "Total number of secret document writes by store and outcome",
			},
			[]string{"store", "outcome"},
		)

		metricsRegistered.Store(true)
	})
}

// RecordPopulate records one populate run.
func (r *Recorder) RecordPopulate(outcome string, keys int, durationSeconds float64) {
	if !metricsRegistered.Load() {
		return
	}
	populateTotal.WithLabelValues(outcome).Inc()
	populateDuration.Observe(durationSeconds)
	if outcome == OutcomeSuccess {
		keysGenerated.Add(float64(keys))
	}
}

// RecordStoreWrite records one document write.
func (r *Recorder) RecordStoreWrite(store, outcome string) {
	if !metricsRegistered.Load() {
		return
	}
	storeWritesTotal.WithLabelValues(store, outcome).Inc()
}

// GetPopulateTotal returns the populate counter for testing.
func GetPopulateTotal() *prometheus.CounterVec {
	return populateTotal
}

// GetKeysGenerated returns the generated keys counter for testing.
func GetKeysGenerated() prometheus.Counter {
	return keysGenerated
}

// GetStoreWritesTotal returns the store write counter for testing.
func GetStoreWritesTotal() *prometheus.CounterVec {
	return storeWritesTotal
}

// IsMetricsRegistered returns whether metrics have been initialized.
func IsMetricsRegistered() bool {
	return metricsRegistered.Load()
}
