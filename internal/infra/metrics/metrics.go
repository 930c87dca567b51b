package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	transitions      *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	sideEffectErrors *prometheus.CounterVec
	sideEffectRuns   *prometheus.CounterVec
	lookupLatency    *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donation_transitions_total",
			Help: "Confirmation outcomes by kind (completed, failed, replay, conflict, hold).",
		}, []string{"gateway", "outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donation_callback_rejections_total",
			Help: "Inbound callbacks rejected before reaching the state machine.",
		}, []string{"gateway", "reason"}),
		sideEffectErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donation_side_effect_failures_total",
			Help: "Side effects that failed after a completed donation.",
		}, []string{"effect"}),
		sideEffectRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donation_side_effect_runs_total",
			Help: "Side effects executed after a completed donation.",
		}, []string{"effect"}),
		lookupLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "donation_gateway_lookup_seconds",
			Help:    "Latency of outbound gateway status lookups.",
			Buckets: prometheus.DefBuckets,
		}, []string{"gateway", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.rejections, m.sideEffectErrors, m.sideEffectRuns, m.lookupLatency)
	}
	return m
}

func (m *Metrics) Transition(gateway, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(gateway, outcome).Inc()
}

func (m *Metrics) Rejection(gateway, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(gateway, reason).Inc()
}

func (m *Metrics) SideEffect(effect string, err error) {
	if m == nil {
		return
	}
	m.sideEffectRuns.WithLabelValues(effect).Inc()
	if err != nil {
		m.sideEffectErrors.WithLabelValues(effect).Inc()
	}
}

func (m *Metrics) Lookup(gateway, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.lookupLatency.WithLabelValues(gateway, result).Observe(took.Seconds())
}
