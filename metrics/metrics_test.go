package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	m.ObserveRun("succeeded", 25*time.Millisecond)
	m.ObserveRun("timed_out", time.Second)
	m.ObserveRun("succeeded", 10*time.Millisecond)
	m.ObserveTruncation("stdout")
	m.ObserveQueueWait(time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.runsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.runsTotal.WithLabelValues("timed_out")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.truncationTotal.WithLabelValues("stdout")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	// Must not panic: the engine runs without instrumentation.
	m.ObserveRun("succeeded", time.Millisecond)
	m.ObserveTruncation("stderr")
	m.ObserveQueueWait(time.Millisecond)
}
