// Package observability holds the prometheus collector and the
// OpenTelemetry tracer setup.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "rebuildfund"

// Collector is a prometheus.Collector for investment and reconciliation
// metrics. It satisfies investment.Hooks and reconcile.Metrics.
type Collector struct {
	investDuration    *prometheus.HistogramVec
	conflicts         *prometheus.CounterVec
	replays           *prometheus.CounterVec
	reconcileRuns     *prometheus.CounterVec
	reconcileChecked  prometheus.Gauge
	reconcileDrifting prometheus.Gauge
	reconcileRepaired prometheus.Counter
}

// NewMetricsCollector returns a new Collector
func NewMetricsCollector() *Collector {
	return &Collector{
		investDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "invest_duration_seconds",
				Help:      "Time taken to handle an investment submission, by outcome.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			}, []string{"outcome"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "aggregate_conflicts_total",
				Help:      "Atomic units aborted by a concurrent update and retried.",
			}, []string{"op"},
		),
		replays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "idempotent_replays_total",
				Help:      "Submissions answered from an earlier result, by lookup source.",
			}, []string{"source"},
		),
		reconcileRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reconcile_runs_total",
				Help:      "Reconciliation passes, by result.",
			}, []string{"result"},
		),
		reconcileChecked: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "reconcile_projects_checked",
				Help:      "Projects checked by the last reconciliation pass.",
			},
		),
		reconcileDrifting: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "reconcile_projects_drifting",
				Help:      "Projects whose raised amount differed from the ledger in the last pass.",
			},
		),
		reconcileRepaired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reconcile_repairs_total",
				Help:      "Raised amounts overwritten with the ledger sum.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.investDuration.Describe(ch)
	c.conflicts.Describe(ch)
	c.replays.Describe(ch)
	c.reconcileRuns.Describe(ch)
	c.reconcileChecked.Describe(ch)
	c.reconcileDrifting.Describe(ch)
	c.reconcileRepaired.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.investDuration.Collect(ch)
	c.conflicts.Collect(ch)
	c.replays.Collect(ch)
	c.reconcileRuns.Collect(ch)
	c.reconcileChecked.Collect(ch)
	c.reconcileDrifting.Collect(ch)
	c.reconcileRepaired.Collect(ch)
}

func (c *Collector) ObserveInvest(outcome string, elapsed time.Duration) {
	c.investDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (c *Collector) IncConflict(op string) {
	c.conflicts.WithLabelValues(op).Inc()
}

func (c *Collector) IncReplay(source string) {
	c.replays.WithLabelValues(source).Inc()
}

func (c *Collector) ObserveReconcile(checked, drifting, repaired int, err error) {
	if err != nil {
		c.reconcileRuns.WithLabelValues("error").Inc()
		return
	}
	c.reconcileRuns.WithLabelValues("ok").Inc()
	c.reconcileChecked.Set(float64(checked))
	c.reconcileDrifting.Set(float64(drifting))
	c.reconcileRepaired.Add(float64(repaired))
}
