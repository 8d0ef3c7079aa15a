// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// It maps the generic metrics.Backend calls onto client_golang CounterVec and
// SummaryVec collectors and pushes them to a Pushgateway at Flush, which
// suits batch runs that exit before a scrape could happen. The job name is
// the Pushgateway grouping key, so it is not repeated as a label.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // etl_step_total
	stepDuration *prometheus.SummaryVec // etl_step_duration_seconds

	documentCounter *prometheus.CounterVec // etl_documents_total
	schemaCounter   *prometheus.CounterVec // etl_schema_actions_total
	rowCounter      *prometheus.CounterVec // etl_rows_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name (often same as the run job).
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "etl"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		reg:        prometheus.NewRegistry(),
		stepCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.StepTotal,
				Help: "Total number of run step executions, partitioned by step and status.",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name:       metrics.StepDurationSeconds,
				Help:       "Duration of run steps in seconds, partitioned by step and status.",
				Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			},
			[]string{"step", "status"},
		),
		documentCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.DocumentsTotal,
				Help: "Documents classified per object status (NEW, ALREADY_EXISTS, MISSING).",
			},
			[]string{"status"},
		),
		schemaCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.SchemaActionsTotal,
				Help: "DDL actions applied by schema reconciliation.",
			},
			[]string{"kind"},
		),
		rowCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metrics.RowsTotal,
				Help: "Row-level counts per kind (inserted, insert_failed).",
			},
			[]string{"kind"},
		),
	}

	for name, c := range map[string]prometheus.Collector{
		"step counter":     b.stepCounter,
		"step summary":     b.stepDuration,
		"document counter": b.documentCounter,
		"schema counter":   b.schemaCounter,
		"row counter":      b.rowCounter,
	} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
	}
	return b, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)

	case metrics.DocumentsTotal:
		if b.documentCounter == nil {
			return
		}
		b.documentCounter.WithLabelValues(labels["status"]).Add(delta)

	case metrics.SchemaActionsTotal:
		if b.schemaCounter == nil {
			return
		}
		b.schemaCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.RowsTotal:
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["kind"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
