package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TransitionCommitted("NEW", "QUALIFYING", false, 0.01)
	m.TransitionCommitted("NEW", "QUALIFYING", false, 0.02)
	m.TransitionRejected("self_transition")
	m.Conflict()
	m.DeliveryFailed("automation")
	m.Dropped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("NEW", "QUALIFYING", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("self_transition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchFailed.WithLabelValues("automation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchDropped))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TransitionCommitted("NEW", "QUALIFYING", true, 0)
		m.TransitionRejected("x")
		m.Conflict()
		m.Delivered("activity")
		m.DeliveryFailed("activity")
		m.Dropped()
	})
}
