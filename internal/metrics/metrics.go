// Package metrics holds the prometheus collectors of the workflow service.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	transitions     *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	conflicts       prometheus.Counter
	commitDuration  prometheus.Histogram
	dispatched      *prometheus.CounterVec
	dispatchFailed  *prometheus.CounterVec
	dispatchDropped prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_transitions_total",
			Help: "Committed lead stage transitions.",
		}, []string{"from", "to", "automated"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_transition_rejections_total",
			Help: "Transition requests rejected by the validator.",
		}, []string{"reason"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadflow_transition_conflicts_total",
			Help: "Optimistic lock conflicts while committing a transition.",
		}),
		commitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadflow_transition_duration_seconds",
			Help:    "Time from request to commit of a transition.",
			Buckets: prometheus.DefBuckets,
		}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_dispatch_delivered_total",
			Help: "Side effects delivered to subscribers.",
		}, []string{"subscriber"}),
		dispatchFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_dispatch_failures_total",
			Help: "Side effects that failed after all retries.",
		}, []string{"subscriber"}),
		dispatchDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadflow_dispatch_dropped_total",
			Help: "Events dropped because the dispatcher queue was full or stopped.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.transitions, m.rejections, m.conflicts, m.commitDuration,
			m.dispatched, m.dispatchFailed, m.dispatchDropped,
		)
	}
	return m
}

func (m *Metrics) TransitionCommitted(from, to string, automated bool, seconds float64) {
	if m == nil {
		return
	}
	auto := "false"
	if automated {
		auto = "true"
	}
	m.transitions.WithLabelValues(from, to, auto).Inc()
	m.commitDuration.Observe(seconds)
}

func (m *Metrics) TransitionRejected(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) Conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Metrics) Delivered(subscriber string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(subscriber).Inc()
}

func (m *Metrics) DeliveryFailed(subscriber string) {
	if m == nil {
		return
	}
	m.dispatchFailed.WithLabelValues(subscriber).Inc()
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.dispatchDropped.Inc()
}
