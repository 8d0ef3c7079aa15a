package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/etlerr"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/logging"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/metrics"
)

// Recorder builds records, appends them to a sink and keeps them for the
// run report.
type Recorder struct {
	sink Sink
	job  string
	log  *zap.Logger

	mu      sync.Mutex
	records []Record
}

// NewRecorder returns a Recorder appending to sink. A nil sink keeps
// records in memory only.
func NewRecorder(sink Sink, job string, log *zap.Logger) *Recorder {
	if sink == nil {
		sink = &MemorySink{}
	}
	return &Recorder{sink: sink, job: job, log: logging.OrNop(log)}
}

// Record builds the record for e and appends it. The record is kept for the
// report even when the sink fails; the failure is returned as a
// *etlerr.PersistenceError.
func (r *Recorder) Record(ctx context.Context, e Entry) (Record, error) {
	rec := Build(e)

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	start := time.Now()
	err := r.sink.Append(ctx, rec)
	metrics.RecordStep(r.job, "audit", err, time.Since(start))
	if err != nil {
		r.log.Error("audit record not stored",
			zap.String("collection", rec.SourceCollection),
			zap.String("object_id", rec.ObjectID),
			zap.Error(err))
		return rec, &etlerr.PersistenceError{Table: TableAudit, Err: err}
	}
	return rec, nil
}

// Records returns a copy of the records built so far, in processing order.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Report summarizes the records built so far.
func (r *Recorder) Report() RunReport {
	return Summarize(r.Records())
}

// WriteReport hands the report rows for date to the sink.
func (r *Recorder) WriteReport(ctx context.Context, rep RunReport, date time.Time) error {
	start := time.Now()
	err := r.sink.WriteReport(ctx, rep, date)
	metrics.RecordStep(r.job, "report", err, time.Since(start))
	if err != nil {
		return &etlerr.PersistenceError{Table: TableMissingCollections, Err: err}
	}
	return nil
}
