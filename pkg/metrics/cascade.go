package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CascadeMetrics records the outcome of derived-field cascades.
type CascadeMetrics struct {
	mutations *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	aborts    *prometheus.CounterVec
	missing   *prometheus.CounterVec
	drift     *prometheus.CounterVec
}

// NewCascadeMetrics registers the cascade metrics on the provided registerer.
func NewCascadeMetrics(reg prometheus.Registerer) *CascadeMetrics {
	if reg == nil {
		return &CascadeMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_mutations_total",
		Help: "Mutations processed by the cascade interceptor.",
	}, []string{"kind", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cascade_duration_seconds",
		Help:    "Time spent resolving, recomputing and validating a cascade.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	aborts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_aborts_total",
		Help: "Aborted mutations by reason.",
	}, []string{"reason"})
	missing := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_missing_entities_total",
		Help: "Referenced entities that could not be found during a cascade.",
	}, []string{"kind"})
	drift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "derived_field_drift_total",
		Help: "Stored derived values found to differ from a full recomputation.",
	}, []string{"kind"})
	reg.MustRegister(mutations, duration, aborts, missing, drift)
	return &CascadeMetrics{
		mutations: mutations,
		duration:  duration,
		aborts:    aborts,
		missing:   missing,
		drift:     drift,
	}
}

// ObserveMutation records one finished mutation with its outcome and duration.
func (c *CascadeMetrics) ObserveMutation(kind, outcome string, duration time.Duration) {
	if c == nil || c.mutations == nil {
		return
	}
	kind = normalizeLabel(kind)
	c.mutations.WithLabelValues(kind, normalizeLabel(outcome)).Inc()
	c.duration.WithLabelValues(kind).Observe(duration.Seconds())
}

// IncAbort increments the abort counter for reason.
func (c *CascadeMetrics) IncAbort(reason string) {
	if c == nil || c.aborts == nil {
		return
	}
	c.aborts.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncMissingEntity counts a lookup that tolerated an absent entity.
func (c *CascadeMetrics) IncMissingEntity(kind string) {
	if c == nil || c.missing == nil {
		return
	}
	c.missing.WithLabelValues(normalizeLabel(kind)).Inc()
}

// AddDrift counts derived values an audit found out of date.
func (c *CascadeMetrics) AddDrift(kind string, n int) {
	if c == nil || c.drift == nil || n <= 0 {
		return
	}
	c.drift.WithLabelValues(normalizeLabel(kind)).Add(float64(n))
}
