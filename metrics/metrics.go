package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's instrumentation. A nil *Metrics is valid and
// turns every observation into a no-op, so the engine stays usable as a
// plain library.
type Metrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	truncationTotal *prometheus.CounterVec
	queueWait       prometheus.Histogram
}

// New creates and registers the engine metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratbox_runs_total",
				Help: "Sandboxed runs by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stratbox_run_duration_seconds",
				Help:    "Wall-clock run duration",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
			},
		),
		truncationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratbox_output_truncated_total",
				Help: "Output captures that hit the channel capacity",
			},
			[]string{"channel"},
		),
		queueWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stratbox_queue_wait_seconds",
				Help:    "Time requests spend queued for a worker slot",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
		),
	}
	reg.MustRegister(m.runsTotal, m.runDuration, m.truncationTotal, m.queueWait)
	return m
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

// ObserveTruncation records a capture channel hitting its capacity.
func (m *Metrics) ObserveTruncation(channel string) {
	if m == nil {
		return
	}
	m.truncationTotal.WithLabelValues(channel).Inc()
}

// ObserveQueueWait records how long a request waited for a worker slot.
func (m *Metrics) ObserveQueueWait(wait time.Duration) {
	if m == nil {
		return
	}
	m.queueWait.Observe(wait.Seconds())
}
