package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/audit"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/classify"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/document"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/etlerr"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage/sqlite"
)

/*
Test helpers
*/

var runDay = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return runDay }
}

func newSQLite(tb testing.TB) *sqlite.Repository {
	tb.Helper()
	r, closeFn, err := sqlite.NewRepository(context.Background(), sqlite.Config{DSN: ":memory:"})
	if err != nil {
		tb.Fatalf("open sqlite :memory:: %v", err)
	}
	tb.Cleanup(closeFn)
	return r
}

func doc(tb testing.TB, collection string, index int, raw string) document.Document {
	tb.Helper()
	d, err := document.New(collection, index, []byte(raw))
	if err != nil {
		tb.Fatalf("document.New(%s): %v", raw, err)
	}
	return d
}

func count(tb testing.TB, r *sqlite.Repository, query string) int {
	tb.Helper()
	var n int
	if err := r.DB().QueryRow(query).Scan(&n); err != nil {
		tb.Fatalf("%s: %v", query, err)
	}
	return n
}

func customersMapping(dup config.DuplicatePolicy) config.CollectionMapping {
	return config.CollectionMapping{
		SourceCollection: "customers",
		DestinationTable: "customers",
		KeyAttributes:    []string{"customer_id"},
		Duplicates:       dup,
		Columns: []config.ColumnMapping{
			{SourceAttribute: "customer_id", DestinationColumn: "customer_id", Type: config.TypeInteger},
			{SourceAttribute: "name", DestinationColumn: "name", Type: config.TypeText},
			{SourceAttribute: "signup_date", DestinationColumn: "signup_date", Type: config.TypeDate, Formats: []string{"YYYY-MM-DD"}},
		},
	}
}

func invoicesMapping() config.CollectionMapping {
	return config.CollectionMapping{
		SourceCollection: "invoices",
		DestinationTable: "invoices",
		KeyAttributes:    []string{"invoice_no"},
		Duplicates:       config.DuplicatesKeep,
		Columns: []config.ColumnMapping{
			{SourceAttribute: "invoice_no", DestinationColumn: "invoice_no", Type: config.TypeText},
			{SourceAttribute: "total", DestinationColumn: "total", Type: config.TypeNumeric},
			{SourceAttribute: "meta.issued", DestinationColumn: "issued_at", Type: config.TypeDateTime},
		},
	}
}

func statusOf(t *testing.T, recs []audit.Record, collection, id string) audit.Record {
	t.Helper()
	var found []audit.Record
	for _, r := range recs {
		if r.SourceCollection == collection && r.ObjectID == id {
			found = append(found, r)
		}
	}
	if len(found) != 1 {
		t.Fatalf("records for %s/%s = %d, want exactly 1", collection, id, len(found))
	}
	return found[0]
}

/*
End-to-end runs against SQLite
*/

func TestRun_Scenarios(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newSQLite(t)
	sink := &audit.MemorySink{}
	mapping := config.Mapping{Collections: config.Collections{customersMapping(config.DuplicatesKeep), invoicesMapping()}}

	batch := Batch{
		Collections: []string{"customers", "unknown_coll", "invoices"},
		Documents: []document.Document{
			doc(t, "customers", 0, `{"source_collection":"customers","customer_id":1,"signup_date":"2023-13-41"}`),
			doc(t, "customers", 1, `{"customer_id":2,"name":"Ada","signup_date":"2023-02-01"}`),
			doc(t, "customers", 2, `{"customer_id":2,"name":"Ada L.","signup_date":"2023-02-01"}`),
			doc(t, "unknown_coll", 0, `{"id":7}`),
			doc(t, "invoices", 0, `{"invoice_no":"A-1","total":12.5,"meta":{"issued":"2024-01-02T03:04:05Z"}}`),
		},
	}

	o := New(repo, mapping, sink, Options{Job: "test", Clock: fixedClock(), RunID: "run-1"})
	res, err := o.Run(ctx, batch)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.RunID != "run-1" || res.Total != 5 || res.New != 3 || res.AlreadyExists != 1 || res.Missing != 1 || res.Errors != 0 {
		t.Fatalf("Result = %+v", res)
	}

	recs := sink.Records()
	if len(recs) != len(batch.Documents) {
		t.Fatalf("audit records = %d, want one per document (%d)", len(recs), len(batch.Documents))
	}
	for _, r := range recs {
		switch r.ObjectStatus {
		case classify.New, classify.AlreadyExists, classify.Missing:
		default:
			t.Fatalf("record %+v has status %q", r, r.ObjectStatus)
		}
	}

	// Unparseable date: NULL column, listed as missing, still NEW.
	first := statusOf(t, recs, "customers", "1")
	if first.ObjectStatus != classify.New {
		t.Fatalf("customer 1 status = %q, want %q", first.ObjectStatus, classify.New)
	}
	if !contains(first.MissingColumns, "signup_date") {
		t.Fatalf("customer 1 missing = %v, want signup_date", first.MissingColumns)
	}
	if n := count(t, repo, "SELECT COUNT(*) FROM customers WHERE customer_id = 1 AND signup_date IS NULL"); n != 1 {
		t.Fatalf("customer 1 rows with NULL signup_date = %d, want 1", n)
	}

	// Duplicate key: NEW then ALREADY_EXISTS, both payloads kept.
	if n := count(t, repo, "SELECT COUNT(*) FROM customers WHERE customer_id = 2"); n != 2 {
		t.Fatalf("rows for customer 2 = %d, want 2", n)
	}
	if n := count(t, repo, "SELECT COUNT(*) FROM customers WHERE customer_id = 2 AND status = 'ALREADY_EXISTS' AND raw_json LIKE '%Ada L.%'"); n != 1 {
		t.Fatalf("duplicate row with its own raw_json = %d, want 1", n)
	}

	// Unmapped collection: MISSING, not persisted, reported.
	var unknown audit.Record
	for _, r := range recs {
		if r.SourceCollection == "unknown_coll" {
			unknown = r
		}
	}
	if unknown.ObjectStatus != classify.Missing || unknown.ProcessingStatus != audit.ProcessingMissing {
		t.Fatalf("unknown_coll record = %+v", unknown)
	}
	if cat, _ := repo.Snapshot(ctx, []string{"unknown_coll"}); len(cat.Tables) != 0 {
		t.Fatalf("unknown_coll table created: %+v", cat.Tables)
	}
	reported := false
	for _, row := range sink.CollectionRows() {
		if row.ObjectName == "unknown_coll" && row.ObjectStatus == classify.Missing && row.IngestionDate == "2024-05-01" {
			reported = true
		}
	}
	if !reported {
		t.Fatalf("unknown_coll not in missing_collections_report: %+v", sink.CollectionRows())
	}

	// Absent table: created with mapped and fixed columns before the insert.
	cat, err := repo.Snapshot(ctx, []string{"invoices"})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	inv, ok := cat.Lookup("invoices")
	if !ok {
		t.Fatal("invoices not created")
	}
	for _, c := range []string{"invoice_no", "total", "issued_at", "raw_json", "ingested_at", "source_collection", "status"} {
		if _, ok := inv.Column(c); !ok {
			t.Fatalf("invoices lacks column %s: %v", c, inv.Columns)
		}
	}
	if n := count(t, repo, "SELECT COUNT(*) FROM invoices WHERE issued_at = '2024-01-02T03:04:05Z' AND source_collection = 'invoices'"); n != 1 {
		t.Fatalf("invoice rows = %d, want 1", n)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestRun_RuntimeFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		formats []string
		issued  string
	}{
		{"defaults when unset", nil, "2024-01-02T03:04:05Z"},
		{"configured", []string{"%d.%m.%Y %H:%M:%S"}, "2.1.2024 03:04:05"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := newSQLite(t)
			sink := &audit.MemorySink{}
			mapping := config.Mapping{Collections: config.Collections{invoicesMapping()}}
			batch := Batch{
				Collections: []string{"invoices"},
				Documents: []document.Document{
					doc(t, "invoices", 0, `{"invoice_no":"B-7","total":"19.99","meta":{"issued":"`+tt.issued+`"}}`),
				},
			}

			opts := Options{Clock: fixedClock(), RuntimeFormats: tt.formats}
			if _, err := New(repo, mapping, sink, opts).Run(context.Background(), batch); err != nil {
				t.Fatalf("Run: %v", err)
			}
			rec := statusOf(t, sink.Records(), "invoices", "B-7")
			if len(rec.MissingColumns) != 0 {
				t.Fatalf("MissingColumns = %v, want none (problems %v)", rec.MissingColumns, rec.Problems)
			}
			if n := count(t, repo, "SELECT COUNT(*) FROM invoices WHERE issued_at = '2024-01-02T03:04:05Z'"); n != 1 {
				t.Fatalf("invoice rows with issued_at = %d, want 1", n)
			}
		})
	}
}

func TestRun_SkipDuplicates(t *testing.T) {
	t.Parallel()

	repo := newSQLite(t)
	sink := &audit.MemorySink{}
	mapping := config.Mapping{Collections: config.Collections{customersMapping(config.DuplicatesSkip)}}
	batch := Batch{
		Collections: []string{"customers"},
		Documents: []document.Document{
			doc(t, "customers", 0, `{"customer_id":5,"name":"a"}`),
			doc(t, "customers", 1, `{"customer_id":5,"name":"b"}`),
		},
	}

	res, err := New(repo, mapping, sink, Options{Clock: fixedClock()}).Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.New != 1 || res.AlreadyExists != 1 {
		t.Fatalf("Result = %+v, want 1 NEW and 1 ALREADY_EXISTS", res)
	}
	if n := count(t, repo, "SELECT COUNT(*) FROM customers"); n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
}

func TestRun_SecondRunSeesExistingKeys(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newSQLite(t)
	mapping := config.Mapping{Collections: config.Collections{customersMapping(config.DuplicatesKeep)}}
	batch := Batch{
		Collections: []string{"customers"},
		Documents:   []document.Document{doc(t, "customers", 0, `{"customer_id":9}`)},
	}

	if _, err := New(repo, mapping, nil, Options{Clock: fixedClock()}).Run(ctx, batch); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	res, err := New(repo, mapping, nil, Options{Clock: fixedClock()}).Run(ctx, batch)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if res.AlreadyExists != 1 || res.New != 0 {
		t.Fatalf("second Result = %+v, want 1 ALREADY_EXISTS", res)
	}
}

func TestRun_AbsentCollectionsRecordedMissing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		skip bool
		want int
	}{
		{"recorded", false, 1},
		{"skipped", true, 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := newSQLite(t)
			sink := &audit.MemorySink{}
			mapping := config.Mapping{Collections: config.Collections{customersMapping(config.DuplicatesKeep), invoicesMapping()}}
			batch := Batch{
				Collections: []string{"customers"},
				Documents:   []document.Document{doc(t, "customers", 0, `{"customer_id":1}`)},
			}

			res, err := New(repo, mapping, sink, Options{Clock: fixedClock(), SkipAbsentCollections: tt.skip}).Run(context.Background(), batch)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if res.Missing != tt.want {
				t.Fatalf("Missing = %d, want %d", res.Missing, tt.want)
			}
			if got := len(res.Report.Coverage.AbsentCollections); got != tt.want {
				t.Fatalf("AbsentCollections = %v, want %d entries", res.Report.Coverage.AbsentCollections, tt.want)
			}
			if tt.want > 0 {
				rec := statusOf(t, sink.Records(), "invoices", "")
				if rec.ObjectName != "invoices" || rec.ObjectStatus != classify.Missing {
					t.Fatalf("absent record = %+v", rec)
				}
			}
		})
	}
}

func TestRun_RejectedValuesAudited(t *testing.T) {
	t.Parallel()

	repo := newSQLite(t)
	sink := &audit.MemorySink{}
	mapping := config.Mapping{Collections: config.Collections{customersMapping(config.DuplicatesKeep)}}
	batch := Batch{
		Collections: []string{"customers"},
		Documents:   []document.Document{doc(t, "customers", 0, `{"customer_id":1}`)},
		Rejected: []Rejected{
			{Collection: "customers", Index: 1, Reason: "document is not a JSON object"},
			{Collection: "", Index: 4, Reason: "document is not a JSON object"},
		},
	}

	res, err := New(repo, mapping, sink, Options{Clock: fixedClock()}).Run(context.Background(), batch)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 3 || res.New != 1 || res.Missing != 2 || res.Errors != 2 {
		t.Fatalf("Result = %+v, want 3 records: 1 NEW, 2 MISSING errors", res)
	}
	if got := count(t, repo, `SELECT COUNT(*) FROM customers`); got != 1 {
		t.Fatalf("customers rows = %d, want 1", got)
	}

	var rejected []audit.Record
	for _, r := range sink.Records() {
		if r.ProcessingStatus == audit.ProcessingError {
			rejected = append(rejected, r)
		}
	}
	if len(rejected) != 2 {
		t.Fatalf("error records = %d, want 2", len(rejected))
	}
	if r := rejected[0]; r.ObjectName != "customers" || r.ObjectStatus != classify.Missing || r.ObjectID != "" {
		t.Fatalf("mapped rejected record = %+v", r)
	}
	if p := rejected[0].Problems; len(p) != 1 || !strings.Contains(p[0], "input value 1") {
		t.Fatalf("Problems = %v, want the input position", p)
	}
	if r := rejected[1]; r.SourceCollection != "" || r.ObjectStatus != classify.Missing {
		t.Fatalf("unnamed rejected record = %+v", r)
	}
}

func TestRun_PredefinedTables(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newSQLite(t)
	if err := repo.Exec(ctx, "CREATE TABLE legacy (customer_id INTEGER, raw_json TEXT)"); err != nil {
		t.Fatalf("create legacy: %v", err)
	}

	legacy := customersMapping(config.DuplicatesKeep)
	legacy.SourceCollection = "legacy_customers"
	legacy.DestinationTable = "legacy"
	ghost := invoicesMapping()
	ghost.DestinationTable = "ghost"

	predefined := config.ParsePredefinedTables("CREATE TABLE legacy (x int);\nCREATE TABLE IF NOT EXISTS ghost (y int);")
	mapping := config.Mapping{Collections: config.Collections{legacy, ghost}}
	batch := Batch{
		Collections: []string{"legacy_customers", "invoices"},
		Documents: []document.Document{
			doc(t, "legacy_customers", 0, `{"customer_id":1,"name":"x"}`),
			doc(t, "invoices", 0, `{"invoice_no":"Z"}`),
		},
	}

	res, err := New(repo, mapping, nil, Options{Clock: fixedClock(), Predefined: predefined}).Run(ctx, batch)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.New != 1 || res.Missing != 1 {
		t.Fatalf("Result = %+v, want 1 NEW and 1 MISSING", res)
	}
	if n := count(t, repo, "SELECT COUNT(*) FROM legacy WHERE customer_id = 1 AND name = 'x' AND raw_json IS NOT NULL"); n != 1 {
		t.Fatalf("legacy rows = %d, want 1", n)
	}
	cat, _ := repo.Snapshot(ctx, []string{"legacy", "ghost"})
	if _, ok := cat.Lookup("ghost"); ok {
		t.Fatal("predefined table ghost was created")
	}
	if tbl, _ := cat.Lookup("legacy"); len(tbl.Columns) != 4 {
		t.Fatalf("legacy columns = %v, want the two originals plus name and signup_date", tbl.Columns)
	}
	if got := res.Report.Coverage.UnreachableTables; len(got) != 1 || got[0] != "ghost" {
		t.Fatalf("UnreachableTables = %v, want [ghost]", got)
	}
}

/*
Failure handling
*/

type flakyRepo struct {
	storage.Repository
	failAt  int
	failErr error
	inserts int
}

func (f *flakyRepo) Insert(ctx context.Context, table string, row storage.Row) error {
	f.inserts++
	if f.inserts == f.failAt {
		return f.failErr
	}
	return f.Repository.Insert(ctx, table, row)
}

func threeCustomers(t *testing.T) Batch {
	return Batch{
		Collections: []string{"customers"},
		Documents: []document.Document{
			doc(t, "customers", 0, `{"customer_id":1}`),
			doc(t, "customers", 1, `{"customer_id":2}`),
			doc(t, "customers", 2, `{"customer_id":3}`),
		},
	}
}

func TestRun_InsertFailureIsRecorded(t *testing.T) {
	t.Parallel()

	repo := &flakyRepo{Repository: newSQLite(t), failAt: 2, failErr: errors.New("CHECK constraint failed")}
	sink := &audit.MemorySink{}
	mapping := config.Mapping{Collections: config.Collections{customersMapping(config.DuplicatesKeep)}}

	res, err := New(repo, mapping, sink, Options{Clock: fixedClock()}).Run(context.Background(), threeCustomers(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 3 || res.Errors != 1 {
		t.Fatalf("Result = %+v, want 3 documents with 1 error", res)
	}
	if rec := statusOf(t, sink.Records(), "customers", "2"); rec.ProcessingStatus != audit.ProcessingError {
		t.Fatalf("customer 2 processing = %q, want %q", rec.ProcessingStatus, audit.ProcessingError)
	}
	if got := res.Report.Collections["customers"].InsertFailures; got != 1 {
		t.Fatalf("InsertFailures = %d, want 1", got)
	}
}

func TestRun_CatalogUnavailableAbortsWithPartialResult(t *testing.T) {
	t.Parallel()

	repo := &flakyRepo{
		Repository: newSQLite(t),
		failAt:     2,
		failErr:    storage.Unavailable(errors.New("connection refused")),
	}
	sink := &audit.MemorySink{}
	mapping := config.Mapping{Collections: config.Collections{customersMapping(config.DuplicatesKeep)}}

	res, err := New(repo, mapping, sink, Options{Clock: fixedClock()}).Run(context.Background(), threeCustomers(t))
	if !etlerr.IsFatal(err) {
		t.Fatalf("Run() error = %v, want a fatal catalog error", err)
	}
	if res.Total != 1 || res.New != 1 {
		t.Fatalf("partial Result = %+v, want the first document only", res)
	}
	if rows := sink.CollectionRows(); len(rows) != 0 {
		t.Fatalf("report rows written for an aborted run: %+v", rows)
	}
	if !strings.Contains(err.Error(), "insert customers") {
		t.Fatalf("Run() error = %v, want it to name the insert", err)
	}
}

func TestRun_TableSinkOnSameRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newSQLite(t)
	mapping := config.Mapping{Collections: config.Collections{customersMapping(config.DuplicatesKeep)}}

	res, err := New(repo, mapping, audit.NewTableSink(repo, ""), Options{Clock: fixedClock()}).Run(ctx, threeCustomers(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.New != 3 {
		t.Fatalf("New = %d, want 3", res.New)
	}
	if n := count(t, repo, "SELECT COUNT(*) FROM "+audit.TableAudit); n != 3 {
		t.Fatalf("audit rows = %d, want 3", n)
	}
	if n := count(t, repo, "SELECT COUNT(*) FROM "+audit.TableMissingCollections+" WHERE object_status = 'NEW'"); n != 1 {
		t.Fatalf("collection report rows = %d, want 1", n)
	}
	if n := count(t, repo, "SELECT COUNT(*) FROM "+audit.TableMissingAttributes); n != 1 {
		t.Fatalf("attribute report rows = %d, want 1 (name and signup_date absent)", n)
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	var a, b, c storage.Row
	a.Append("id", config.TypeInteger, int64(1))
	b.Append("id", config.TypeInteger, int64(1))
	c.Append("id", config.TypeText, "1")

	if fingerprint("t", a) != fingerprint("t", b) {
		t.Fatal("equal keys hash differently")
	}
	if fingerprint("t", a) == fingerprint("t", c) {
		t.Fatal("int 1 and string \"1\" share a fingerprint")
	}
	if fingerprint("t", a) == fingerprint("u", a) {
		t.Fatal("tables share a fingerprint")
	}
}

func TestObjectID(t *testing.T) {
	t.Parallel()

	d := doc(t, "c", 0, `{"a":"x","n":42,"o":{"k":1},"z":null,"b":true}`)
	tests := []struct {
		attr, want string
	}{
		{"a", "x"},
		{"n", "42"},
		{"o", `{"k":1}`},
		{"o.k", "1"},
		{"z", ""},
		{"b", "true"},
		{"nope", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := objectID(d, tt.attr); got != tt.want {
			t.Fatalf("objectID(%q) = %q, want %q", tt.attr, got, tt.want)
		}
	}
}
