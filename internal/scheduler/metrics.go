package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts ticks the scheduler did not run to completion.
type Metrics struct {
	// Skipped ticks by reason: running, locked, lock_error
	Skipped *prometheus.CounterVec

	Panics prometheus.Counter
}

// NewMetrics creates the scheduler metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers the scheduler metrics with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Skipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dronewatch_scheduler_ticks_skipped_total",
			Help: "Scheduled ticks skipped because another tick held the lock",
		}, []string{"reason"}),
		Panics: factory.NewCounter(prometheus.CounterOpts{
			Name: "dronewatch_scheduler_tick_panics_total",
			Help: "Ticks that panicked and were recovered",
		}),
	}
}

func (m *Metrics) IncrementSkipped(reason string) {
	if m != nil {
		m.Skipped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncrementPanics() {
	if m != nil {
		m.Panics.Inc()
	}
}
