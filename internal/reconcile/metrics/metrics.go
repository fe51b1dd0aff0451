package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the reconciliation job.
type Metrics struct {
	// Ticks by outcome: completed, aborted
	Ticks *prometheus.CounterVec

	// Violations committed to the store
	ViolationsRecorded prometheus.Counter

	// Drones evaluated against the geofence, by result: inside, outside
	DronesEvaluated *prometheus.CounterVec

	// Failed owner lookups by upstream category
	OwnerLookupFailures *prometheus.CounterVec

	TickDuration prometheus.Histogram
}

// New creates a new Metrics instance registered with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the job metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dronewatch_reconcile_ticks_total",
			Help: "Reconciliation ticks by outcome",
		}, []string{"outcome"}),

		ViolationsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "dronewatch_violations_recorded_total",
			Help: "Violation records committed to the store",
		}),

		DronesEvaluated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dronewatch_drones_evaluated_total",
			Help: "Drones evaluated against the no-fly zone",
		}, []string{"result"}),

		OwnerLookupFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dronewatch_owner_lookup_failures_total",
			Help: "Owner lookups that failed, by category",
		}, []string{"category"}),

		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dronewatch_reconcile_tick_duration_seconds",
			Help:    "Duration of a reconciliation tick",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// IncrementTick records a finished tick.
func (m *Metrics) IncrementTick(outcome string) {
	if m != nil {
		m.Ticks.WithLabelValues(outcome).Inc()
	}
}

// AddViolations records committed violations.
func (m *Metrics) AddViolations(n int) {
	if m != nil && n > 0 {
		m.ViolationsRecorded.Add(float64(n))
	}
}

// IncrementEvaluated records one geofence evaluation.
func (m *Metrics) IncrementEvaluated(inside bool) {
	if m == nil {
		return
	}
	result := "outside"
	if inside {
		result = "inside"
	}
	m.DronesEvaluated.WithLabelValues(result).Inc()
}

// IncrementLookupFailure records a failed owner lookup.
func (m *Metrics) IncrementLookupFailure(category string) {
	if m != nil {
		m.OwnerLookupFailures.WithLabelValues(category).Inc()
	}
}

// ObserveTick records the duration of a tick.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m != nil {
		m.TickDuration.Observe(d.Seconds())
	}
}
