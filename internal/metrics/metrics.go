// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from an ingestion run.
//
// It exposes a narrow interface (Backend) focused on counters and timing data
// and a global, pluggable backend that defaults to a no-op implementation, so
// metrics are always safe to call even when no real backend is configured.
// Concrete systems live in subpackages (prompush, datadog).
package metrics

import "time"

// Metric names shared by all backends.
const (
	StepTotal           = "etl_step_total"
	StepDurationSeconds = "etl_step_duration_seconds"
	DocumentsTotal      = "etl_documents_total"
	SchemaActionsTotal  = "etl_schema_actions_total"
	RowsTotal           = "etl_rows_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency and success/failure of one run step such as
// "decode", "reconcile", "persist" or "audit".
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordDocument counts one classified document. status is the object
// status (NEW, ALREADY_EXISTS, MISSING).
func RecordDocument(job, status string) {
	backend.IncCounter(DocumentsTotal, 1, Labels{
		"job":    job,
		"status": status,
	})
}

// RecordSchemaAction counts one applied DDL action (create_table,
// add_column).
func RecordSchemaAction(job, kind string) {
	backend.IncCounter(SchemaActionsTotal, 1, Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordRow increments a row-level counter for the given job and kind, e.g.
// "inserted" or "insert_failed".
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}
