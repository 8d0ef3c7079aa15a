package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/classify"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/etlerr"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage/sqlite"
)

func newSQLite(tb testing.TB) *sqlite.Repository {
	tb.Helper()
	r, closeFn, err := sqlite.NewRepository(context.Background(), sqlite.Config{DSN: ":memory:"})
	if err != nil {
		tb.Fatalf("open sqlite :memory:: %v", err)
	}
	tb.Cleanup(closeFn)
	return r
}

func countRows(tb testing.TB, r *sqlite.Repository, table string) int {
	tb.Helper()
	var n int
	if err := r.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		tb.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestTableSink_WritesAuditAndReports(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newSQLite(t)
	sink := NewTableSink(repo, "")

	for i := 0; i < 2; i++ {
		if err := sink.EnsureTables(ctx); err != nil {
			t.Fatalf("EnsureTables() #%d: %v", i+1, err)
		}
	}

	recs := sampleRecords()
	for _, rec := range recs {
		if err := sink.Append(ctx, rec); err != nil {
			t.Fatalf("Append(%s): %v", rec.ObjectID, err)
		}
	}
	if err := sink.WriteReport(ctx, Summarize(recs), day); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	if got := countRows(t, repo, TableAudit); got != len(recs) {
		t.Fatalf("%s rows = %d, want %d", TableAudit, got, len(recs))
	}
	if got := countRows(t, repo, TableMissingAttributes); got != 1 {
		t.Fatalf("%s rows = %d, want 1", TableMissingAttributes, got)
	}
	if got := countRows(t, repo, TableMissingCollections); got != 3 {
		t.Fatalf("%s rows = %d, want 3", TableMissingCollections, got)
	}

	var missing, status string
	err := repo.DB().QueryRow(
		"SELECT missing_columns, processing_status FROM "+TableAudit+" WHERE object_status = 'ALREADY_EXISTS'",
	).Scan(&missing, &status)
	if err != nil {
		t.Fatalf("select audit row: %v", err)
	}
	if missing != `["email","signup_date"]` || status != "success" {
		t.Fatalf("audit row = (%s, %s), want ([\"email\",\"signup_date\"], success)", missing, status)
	}

	var nullID int
	if err := repo.DB().QueryRow("SELECT COUNT(*) FROM " + TableAudit + " WHERE object_id IS NULL").Scan(&nullID); err != nil {
		t.Fatalf("count null ids: %v", err)
	}
	if nullID != 0 {
		t.Fatalf("null object ids = %d, want 0", nullID)
	}
}

func TestTableSink_EmptyObjectIDIsNull(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newSQLite(t)
	sink := NewTableSink(repo, "")
	if err := sink.EnsureTables(ctx); err != nil {
		t.Fatalf("EnsureTables: %v", err)
	}
	rec := Build(Entry{SourceCollection: "invoices", ObjectName: "invoices",
		ObjectStatus: classify.Missing, ProcessingStatus: ProcessingMissing, IngestedAt: day})
	if err := sink.Append(ctx, rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	var missing string
	err := repo.DB().QueryRow("SELECT missing_columns FROM " + TableAudit + " WHERE object_id IS NULL").Scan(&missing)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if missing != "[]" {
		t.Fatalf("missing_columns = %q, want %q", missing, "[]")
	}
}

func TestTableSink_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		schema, want string
	}{
		{"", "ingestion_audit"},
		{"audit", "audit.ingestion_audit"},
	}
	for _, tt := range tests {
		if got := NewTableSink(nil, tt.schema).Table(TableAudit); got != tt.want {
			t.Fatalf("Table(%q) = %q, want %q", tt.schema, got, tt.want)
		}
	}
}

type failingSink struct{ err error }

func (f failingSink) Append(context.Context, Record) error { return f.err }

func (f failingSink) WriteReport(context.Context, RunReport, time.Time) error { return f.err }

func TestRecorder_KeepsRecordsWhenSinkFails(t *testing.T) {
	t.Parallel()

	cause := storage.Unavailable(errors.New("connection reset"))
	rec := NewRecorder(failingSink{err: cause}, "test", nil)

	_, err := rec.Record(context.Background(), Entry{ObjectID: "1", ObjectName: "t", ObjectStatus: classify.New})
	var pe *etlerr.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("Record() error = %v, want *etlerr.PersistenceError", err)
	}
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("Record() error = %v, want it to wrap storage.ErrUnavailable", err)
	}
	if got := len(rec.Records()); got != 1 {
		t.Fatalf("len(Records()) = %d, want 1", got)
	}
	if err := rec.WriteReport(context.Background(), rec.Report(), day); !errors.As(err, &pe) {
		t.Fatalf("WriteReport() error = %v, want *etlerr.PersistenceError", err)
	}
}

func TestRecorder_MemorySink(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mem := &MemorySink{}
	rec := NewRecorder(mem, "test", nil)
	for _, r := range sampleRecords() {
		if _, err := rec.Record(ctx, Entry{
			ObjectID: r.ObjectID, SourceCollection: r.SourceCollection, ObjectName: r.ObjectName,
			ObjectStatus: r.ObjectStatus, MissingColumns: r.MissingColumns,
			ProcessingStatus: r.ProcessingStatus, Problems: r.Problems, IngestedAt: r.IngestedAt,
		}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := rec.WriteReport(ctx, rec.Report(), day); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	if got := len(mem.Records()); got != 4 {
		t.Fatalf("len(Records()) = %d, want 4", got)
	}
	if got := len(mem.CollectionRows()); got != 3 {
		t.Fatalf("len(CollectionRows()) = %d, want 3", got)
	}
	if got := mem.AttributeRows()[0].MissingColumns; len(got) != 2 {
		t.Fatalf("AttributeRows()[0].MissingColumns = %v, want 2 entries", got)
	}
}
