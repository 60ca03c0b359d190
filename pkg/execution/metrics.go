package execution

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors of an engine.
type Metrics struct {
	RunsTotal           *prometheus.CounterVec
	RunDuration         prometheus.Histogram
	NodeExecutionsTotal *prometheus.CounterVec
	NodeDuration        *prometheus.HistogramVec
	NodesSkippedTotal   *prometheus.CounterVec
	EventsDroppedTotal  prometheus.Counter
}

// NewMetrics creates the engine collectors and registers them on reg. A nil
// reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autoflow_runs_total",
				Help: "Total number of workflow runs",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "autoflow_run_duration_seconds",
				Help:    "Workflow run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),
		NodeExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autoflow_node_executions_total",
				Help: "Total number of node executions",
			},
			[]string{"category", "node_type", "status"},
		),
		NodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autoflow_node_execution_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"category"},
		),
		NodesSkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autoflow_nodes_skipped_total",
				Help: "Work items skipped because the node was missing, disabled or already on the branch",
			},
			[]string{"reason"},
		),
		EventsDroppedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "autoflow_events_dropped_total",
				Help: "Execution events dropped for slow subscribers",
			},
		),
	}
}

func (m *Metrics) observeNode(category, nodeType, status string, d time.Duration) {
	m.NodeExecutionsTotal.WithLabelValues(category, nodeType, status).Inc()
	m.NodeDuration.WithLabelValues(category).Observe(d.Seconds())
}

func (m *Metrics) observeRun(status string, d time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
}
