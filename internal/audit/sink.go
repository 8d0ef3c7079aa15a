package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage"
)

// Audit and report table names.
const (
	TableAudit              = "ingestion_audit"
	TableMissingAttributes  = "missing_attributes_report"
	TableMissingCollections = "missing_collections_report"
)

// Sink stores audit records and report rows. Append is called once per
// record in processing order.
type Sink interface {
	Append(ctx context.Context, rec Record) error
	WriteReport(ctx context.Context, rep RunReport, date time.Time) error
}

// MemorySink keeps everything in memory. It backs dry runs and tests.
type MemorySink struct {
	mu          sync.Mutex
	records     []Record
	attributes  []MissingAttributeRow
	collections []MissingCollectionRow
}

func (m *MemorySink) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MemorySink) WriteReport(_ context.Context, rep RunReport, date time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attributes = append(m.attributes, MissingAttributeRows(rep, date)...)
	m.collections = append(m.collections, MissingCollectionRows(rep, date)...)
	return nil
}

// Records returns a copy of the appended records.
func (m *MemorySink) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

// AttributeRows returns the missing_attributes_report rows written so far.
func (m *MemorySink) AttributeRows() []MissingAttributeRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MissingAttributeRow(nil), m.attributes...)
}

// CollectionRows returns the missing_collections_report rows written so far.
func (m *MemorySink) CollectionRows() []MissingCollectionRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MissingCollectionRow(nil), m.collections...)
}

// TableSink writes to the audit and report tables of a repository.
type TableSink struct {
	repo   storage.Repository
	schema string
}

// NewTableSink returns a sink writing to repo. A non-empty schema
// qualifies every table name.
func NewTableSink(repo storage.Repository, schema string) *TableSink {
	return &TableSink{repo: repo, schema: schema}
}

// Table returns the qualified name of one of the audit tables.
func (s *TableSink) Table(name string) string {
	if s.schema == "" {
		return name
	}
	return s.schema + "." + name
}

// TableDefs returns the definitions of the three audit tables.
func (s *TableSink) TableDefs() []ddl.TableDef {
	return []ddl.TableDef{
		{FQN: s.Table(TableAudit), Columns: []ddl.ColumnDef{
			{Name: "ingested_at", Type: config.TypeDateTime},
			{Name: "object_id", Type: config.TypeText, Nullable: true},
			{Name: "source_collection", Type: config.TypeText, Nullable: true},
			{Name: "object_name", Type: config.TypeText},
			{Name: "object_status", Type: config.TypeText},
			{Name: "missing_columns", Type: config.TypeJSON, Nullable: true},
			{Name: "processing_status", Type: config.TypeText},
		}},
		{FQN: s.Table(TableMissingAttributes), Columns: []ddl.ColumnDef{
			{Name: "ingestion_date", Type: config.TypeDate},
			{Name: "object_name", Type: config.TypeText},
			{Name: "missing_columns", Type: config.TypeJSON, Nullable: true},
		}},
		{FQN: s.Table(TableMissingCollections), Columns: []ddl.ColumnDef{
			{Name: "ingestion_date", Type: config.TypeDate},
			{Name: "object_name", Type: config.TypeText},
			{Name: "object_status", Type: config.TypeText},
		}},
	}
}

// EnsureTables creates the audit tables when they do not exist.
func (s *TableSink) EnsureTables(ctx context.Context) error {
	d := s.repo.Dialect()
	for _, t := range s.TableDefs() {
		stmts, err := d.CreateTable(t)
		if err != nil {
			return fmt.Errorf("audit table %s: %w", t.FQN, err)
		}
		for _, stmt := range stmts {
			if err := s.repo.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("audit table %s: %w", t.FQN, err)
			}
		}
	}
	return nil
}

func (s *TableSink) Append(ctx context.Context, rec Record) error {
	missing, err := jsonList(rec.MissingColumns)
	if err != nil {
		return err
	}
	var objectID any
	if rec.ObjectID != "" {
		objectID = rec.ObjectID
	}

	var row storage.Row
	row.Append("ingested_at", config.TypeDateTime, rec.IngestedAt)
	row.Append("object_id", config.TypeText, objectID)
	row.Append("source_collection", config.TypeText, rec.SourceCollection)
	row.Append("object_name", config.TypeText, rec.ObjectName)
	row.Append("object_status", config.TypeText, string(rec.ObjectStatus))
	row.Append("missing_columns", config.TypeJSON, missing)
	row.Append("processing_status", config.TypeText, string(rec.ProcessingStatus))
	return s.repo.Insert(ctx, s.Table(TableAudit), row)
}

// WriteReport inserts the report rows derived from rep. It stops at the
// first failed insert.
func (s *TableSink) WriteReport(ctx context.Context, rep RunReport, date time.Time) error {
	for _, r := range MissingAttributeRows(rep, date) {
		missing, err := jsonList(r.MissingColumns)
		if err != nil {
			return err
		}
		var row storage.Row
		row.Append("ingestion_date", config.TypeDate, r.IngestionDate)
		row.Append("object_name", config.TypeText, r.ObjectName)
		row.Append("missing_columns", config.TypeJSON, missing)
		if err := s.repo.Insert(ctx, s.Table(TableMissingAttributes), row); err != nil {
			return err
		}
	}
	for _, r := range MissingCollectionRows(rep, date) {
		var row storage.Row
		row.Append("ingestion_date", config.TypeDate, r.IngestionDate)
		row.Append("object_name", config.TypeText, r.ObjectName)
		row.Append("object_status", config.TypeText, string(r.ObjectStatus))
		if err := s.repo.Insert(ctx, s.Table(TableMissingCollections), row); err != nil {
			return err
		}
	}
	return nil
}

func jsonList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode missing columns: %w", err)
	}
	return string(b), nil
}
