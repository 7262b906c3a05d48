// Package metrics exposes Prometheus instrumentation for backtest runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	stepsTotal       *prometheus.CounterVec
	infeasibleSteps  *prometheus.CounterVec
	tunerEvaluations *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		backtestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optfolio_backtests_total",
				Help: "Total number of backtest runs",
			},
			[]string{"status"},
		),
		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "optfolio_backtest_duration_seconds",
				Help:    "Backtest run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optfolio_simulation_steps_total",
				Help: "Total number of simulated trading steps",
			},
			[]string{"policy"},
		),
		infeasibleSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optfolio_infeasible_steps_total",
				Help: "Total number of steps where the policy was infeasible",
			},
			[]string{"policy"},
		),
		tunerEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optfolio_tuner_evaluations_total",
				Help: "Total number of hyperparameter candidate evaluations",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.stepsTotal)
	reg.MustRegister(r.infeasibleSteps)
	reg.MustRegister(r.tunerEvaluations)

	return r
}

// RecordBacktest records a backtest run completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordStep records a completed simulation step.
func (r *Registry) RecordStep(policy string) {
	r.stepsTotal.WithLabelValues(policy).Inc()
}

// RecordInfeasibleStep records a step where the policy had no feasible trade.
func (r *Registry) RecordInfeasibleStep(policy string) {
	r.infeasibleSteps.WithLabelValues(policy).Inc()
}

// RecordTunerEvaluation records a hyperparameter candidate evaluation.
func (r *Registry) RecordTunerEvaluation(status string) {
	r.tunerEvaluations.WithLabelValues(status).Inc()
}
