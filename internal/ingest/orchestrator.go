// Package ingest drives one run: every input document is mapped, reconciled,
// resolved, classified, persisted and audited, in input order.
//
// Only a lost catalog connection stops a run early. Everything else ends up
// in the document's audit record and the run goes on.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/audit"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/classify"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/dates"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/document"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/etlerr"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/logging"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/metrics"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/reconcile"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/resolve"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage"
)

// Options configures an Orchestrator.
type Options struct {
	Job string
	// RunID tags logs. A random UUID is used when empty.
	RunID string
	// RuntimeFormats are the last-resort candidate date formats.
	// config.DefaultDateFormats is used when empty.
	RuntimeFormats []string
	// Predefined lists tables owned by an external schema file.
	Predefined config.TableSet
	// SkipAbsentCollections disables MISSING records for mapped
	// collections that are not in the input.
	SkipAbsentCollections bool
	// Clock stamps ingested_at. Defaults to time.Now.
	Clock  func() time.Time
	Logger *zap.Logger
}

// Batch is the input of one run.
type Batch struct {
	Documents []document.Document
	// Collections names every collection present in the input, including
	// those with no documents.
	Collections []string
	// Rejected lists input values that could not be decoded as documents.
	// Each one gets an error audit record.
	Rejected []Rejected
}

// Rejected is an input value that is not a JSON object.
type Rejected struct {
	Collection string
	Index      int
	Reason     string
}

// Result summarizes a run.
type Result struct {
	RunID         string
	Total         int
	New           int
	AlreadyExists int
	Missing       int
	// Errors counts documents whose row could not be persisted.
	Errors int
	Report audit.RunReport
}

// Orchestrator runs batches against one repository.
type Orchestrator struct {
	mapping  config.Mapping
	repo     storage.Repository
	sink     audit.Sink
	opts     Options
	log      *zap.Logger
	clock    func() time.Time
	runID    string
	rec      *reconcile.Reconciler
	recorder *audit.Recorder

	seen        map[xxh3.Uint128]struct{}
	absent      map[string]struct{}
	unmapped    map[string]struct{}
	unreachable map[string]struct{}
}

// New returns an Orchestrator for one run. A nil sink keeps audit records
// in memory.
func New(repo storage.Repository, mapping config.Mapping, sink audit.Sink, opts Options) *Orchestrator {
	if sink == nil {
		sink = &audit.MemorySink{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	if len(opts.RuntimeFormats) == 0 {
		opts.RuntimeFormats = config.DefaultDateFormats
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := logging.OrNop(opts.Logger).With(zap.String("job", opts.Job), zap.String("run_id", runID))

	return &Orchestrator{
		mapping:     mapping,
		repo:        repo,
		sink:        sink,
		opts:        opts,
		log:         log,
		clock:       clock,
		runID:       runID,
		rec:         reconcile.New(repo, reconcile.Options{Predefined: opts.Predefined, Job: opts.Job, Logger: log}),
		recorder:    audit.NewRecorder(sink, opts.Job, log),
		seen:        make(map[xxh3.Uint128]struct{}),
		absent:      make(map[string]struct{}),
		unmapped:    make(map[string]struct{}),
		unreachable: make(map[string]struct{}),
	}
}

// RunID returns the identifier of this run.
func (o *Orchestrator) RunID() string { return o.runID }

// Run processes every document of b in order. On a fatal catalog error the
// remaining documents are skipped and the partial result is returned with
// the error.
func (o *Orchestrator) Run(ctx context.Context, b Batch) (Result, error) {
	start := o.clock()
	o.log.Info("run started", zap.Int("documents", len(b.Documents)), zap.Int("rejected", len(b.Rejected)))

	if err := o.prepare(ctx); err != nil {
		return o.result(), err
	}

	for _, doc := range b.Documents {
		if err := o.process(ctx, doc); err != nil {
			o.log.Error("run aborted", zap.Error(err))
			return o.finish(ctx, start, false), err
		}
	}

	for _, r := range b.Rejected {
		if err := o.recordRejected(ctx, r); err != nil {
			o.log.Error("run aborted", zap.Error(err))
			return o.finish(ctx, start, false), err
		}
	}

	if !o.opts.SkipAbsentCollections {
		if err := o.recordAbsent(ctx, b.Collections); err != nil {
			o.log.Error("run aborted", zap.Error(err))
			return o.finish(ctx, start, false), err
		}
	}

	return o.finish(ctx, start, true), nil
}

type tableEnsurer interface {
	EnsureTables(ctx context.Context) error
}

func (o *Orchestrator) prepare(ctx context.Context) error {
	s, ok := o.sink.(tableEnsurer)
	if !ok {
		return nil
	}
	if err := s.EnsureTables(ctx); err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			return &etlerr.CatalogUnavailableError{Op: "create audit tables", Err: err}
		}
		return &etlerr.SchemaError{Table: audit.TableAudit, Err: err}
	}
	return nil
}

func (o *Orchestrator) process(ctx context.Context, doc document.Document) error {
	now := o.clock()
	entry := audit.Entry{
		SourceCollection: doc.Collection,
		ObjectName:       doc.Collection,
		IngestedAt:       now,
	}

	cm, ok := o.mapping.Lookup(doc.Collection)
	if !ok {
		o.log.Warn("document skipped",
			zap.Int("index", doc.Index),
			zap.Error(&etlerr.MappingAbsentError{Collection: doc.Collection}))
		o.unmapped[doc.Collection] = struct{}{}
		entry.ObjectStatus = classify.Missing
		entry.ProcessingStatus = audit.ProcessingMissing
		return o.record(ctx, entry)
	}
	entry.ObjectName = cm.DestinationTable
	entry.ObjectID = objectID(doc, cm.ObjectID())

	target, err := o.rec.Ensure(ctx, cm)
	if etlerr.IsFatal(err) {
		return err
	}
	tableReady := err == nil
	if !tableReady {
		o.unreachable[cm.DestinationTable] = struct{}{}
	}

	row := resolve.ResolveAll(doc, cm, o.opts.RuntimeFormats)
	entry.MissingColumns = row.Missing
	if len(row.Missing) > 0 {
		o.log.Warn("document missing columns",
			zap.String("collection", doc.Collection),
			zap.Int("index", doc.Index),
			zap.Strings("columns", row.Missing))
	}
	for _, p := range row.Problems {
		entry.Problems = append(entry.Problems, fmt.Sprintf("%s: %v", p.Attribute, p.Err))
		o.log.Warn("attribute unusable",
			zap.String("collection", doc.Collection),
			zap.Int("index", doc.Index),
			zap.String("attribute", p.Attribute),
			zap.Error(p.Err))
	}

	existence := classify.Unknown
	var fp xxh3.Uint128
	if tableReady {
		existence, fp, err = o.exists(ctx, cm, row)
		if err != nil {
			return err
		}
	}
	status := classify.Classify(classify.Input{MappingFound: true, TableReady: tableReady, Existence: existence})
	entry.ObjectStatus = status

	switch {
	case status == classify.Missing:
		entry.ProcessingStatus = audit.ProcessingMissing
	case status == classify.AlreadyExists && cm.Duplicates == config.DuplicatesSkip:
		entry.ProcessingStatus = audit.ProcessingSuccess
		metrics.RecordRow(o.opts.Job, "skipped", 1)
	default:
		err := o.persist(ctx, doc, cm, target, row, status, now)
		switch {
		case etlerr.IsFatal(err):
			return err
		case err != nil:
			entry.ProcessingStatus = audit.ProcessingError
			o.log.Error("insert failed",
				zap.String("collection", doc.Collection),
				zap.Int("index", doc.Index),
				zap.Error(err))
			metrics.RecordRow(o.opts.Job, "insert_failed", 1)
		default:
			entry.ProcessingStatus = audit.ProcessingSuccess
			o.seen[fp] = struct{}{}
			metrics.RecordRow(o.opts.Job, "inserted", 1)
		}
	}
	return o.record(ctx, entry)
}

// exists checks the natural key of row, first against keys persisted during
// this run and then against the table. A key attribute without a value
// makes the lookup impossible.
func (o *Orchestrator) exists(ctx context.Context, cm config.CollectionMapping, row resolve.Row) (classify.Existence, xxh3.Uint128, error) {
	var key storage.Row
	for _, attr := range cm.KeyAttributes {
		col, ok := cm.Column(attr)
		if !ok {
			return classify.Unknown, xxh3.Uint128{}, nil
		}
		v, ok := row.Value(attr)
		if !ok {
			o.log.Warn("key attribute missing",
				zap.String("collection", cm.SourceCollection),
				zap.String("attribute", attr))
			return classify.Unknown, xxh3.Uint128{}, nil
		}
		key.Append(col.DestinationColumn, col.Type, v)
	}

	fp := fingerprint(cm.DestinationTable, key)
	if _, ok := o.seen[fp]; ok {
		return classify.Present, fp, nil
	}

	found, err := o.repo.Exists(ctx, cm.DestinationTable, key)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			return classify.Unknown, fp, &etlerr.CatalogUnavailableError{Op: "lookup " + cm.DestinationTable, Err: err}
		}
		o.log.Warn("key lookup failed", zap.String("table", cm.DestinationTable), zap.Error(err))
		return classify.Unknown, fp, nil
	}
	if found {
		return classify.Present, fp, nil
	}
	return classify.Absent, fp, nil
}

func (o *Orchestrator) persist(ctx context.Context, doc document.Document, cm config.CollectionMapping, target reconcile.Target, row resolve.Row, status classify.Status, now time.Time) error {
	var out storage.Row
	for i, col := range row.Columns {
		out.Append(col, row.Types[i], row.Values[i])
	}
	fixed := []struct {
		name string
		typ  config.ColumnType
		val  any
	}{
		{cm.RawColumn(), config.TypeJSON, doc.String()},
		{config.ColumnIngestedAt, config.TypeDateTime, dates.Format(now, dates.KindDateTime)},
		{config.ColumnSourceCollection, config.TypeText, doc.Collection},
		{config.ColumnStatus, config.TypeText, string(status)},
	}
	for _, f := range fixed {
		// Predefined tables only get the fixed columns they declare.
		if target.Predefined && !target.Has(f.name) {
			continue
		}
		out.Append(f.name, f.typ, f.val)
	}

	start := time.Now()
	err := o.repo.Insert(ctx, cm.DestinationTable, out)
	metrics.RecordStep(o.opts.Job, "persist", err, time.Since(start))
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrUnavailable) {
		return &etlerr.CatalogUnavailableError{Op: "insert " + cm.DestinationTable, Err: err}
	}
	return &etlerr.PersistenceError{Table: cm.DestinationTable, Err: err}
}

func (o *Orchestrator) record(ctx context.Context, e audit.Entry) error {
	rec, err := o.recorder.Record(ctx, e)
	metrics.RecordDocument(o.opts.Job, string(rec.ObjectStatus))
	if err != nil && errors.Is(err, storage.ErrUnavailable) {
		return &etlerr.CatalogUnavailableError{Op: "audit", Err: err}
	}
	return nil
}

// recordRejected writes the MISSING record of an input value that never
// became a document. Nothing is persisted for it.
func (o *Orchestrator) recordRejected(ctx context.Context, r Rejected) error {
	name := r.Collection
	if cm, ok := o.mapping.Lookup(r.Collection); ok {
		name = cm.DestinationTable
	}
	o.log.Warn("input value rejected",
		zap.String("collection", r.Collection),
		zap.Int("index", r.Index),
		zap.String("reason", r.Reason))
	return o.record(ctx, audit.Entry{
		SourceCollection: r.Collection,
		ObjectName:       name,
		ObjectStatus:     classify.Missing,
		ProcessingStatus: audit.ProcessingError,
		Problems:         []string{fmt.Sprintf("input value %d: %s", r.Index, r.Reason)},
		IngestedAt:       o.clock(),
	})
}

// recordAbsent writes one MISSING record per mapped collection that did not
// appear in the input.
func (o *Orchestrator) recordAbsent(ctx context.Context, present []string) error {
	in := make(map[string]struct{}, len(present))
	for _, c := range present {
		in[c] = struct{}{}
	}
	for _, cm := range o.mapping.Collections {
		if _, ok := in[cm.SourceCollection]; ok {
			continue
		}
		o.absent[cm.SourceCollection] = struct{}{}
		o.log.Warn("mapped collection absent from input",
			zap.String("collection", cm.SourceCollection),
			zap.String("table", cm.DestinationTable))
		err := o.record(ctx, audit.Entry{
			SourceCollection: cm.SourceCollection,
			ObjectName:       cm.DestinationTable,
			ObjectStatus:     classify.Missing,
			ProcessingStatus: audit.ProcessingMissing,
			IngestedAt:       o.clock(),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// finish builds the result. Report tables are written only for completed
// runs.
func (o *Orchestrator) finish(ctx context.Context, start time.Time, completed bool) Result {
	res := o.result()
	if completed {
		if err := o.recorder.WriteReport(ctx, res.Report, start); err != nil {
			o.log.Error("report tables not written", zap.Error(err))
		}
	}
	o.log.Info(audit.Summary(res.Report))
	o.log.Info("run finished",
		zap.Bool("completed", completed),
		zap.Int("total", res.Total),
		zap.Int("new", res.New),
		zap.Int("already_exists", res.AlreadyExists),
		zap.Int("missing", res.Missing),
		zap.Int("errors", res.Errors))
	return res
}

func (o *Orchestrator) result() Result {
	rep := o.recorder.Report().WithCoverage(audit.Coverage{
		AbsentCollections:   keys(o.absent),
		UnmappedCollections: keys(o.unmapped),
		UnreachableTables:   keys(o.unreachable),
	})
	return Result{
		RunID:         o.runID,
		Total:         rep.Total,
		New:           rep.ByStatus[classify.New],
		AlreadyExists: rep.ByStatus[classify.AlreadyExists],
		Missing:       rep.ByStatus[classify.Missing],
		Errors:        rep.ByProcessing[audit.ProcessingError],
		Report:        rep,
	}
}

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// fingerprint hashes the table and typed key values.
func fingerprint(table string, key storage.Row) xxh3.Uint128 {
	var b strings.Builder
	b.WriteString(table)
	for i, v := range key.Values {
		fmt.Fprintf(&b, "\x00%s=%T:%v", key.Columns[i], v, v)
	}
	return xxh3.HashString128(b.String())
}

// objectID renders the audit object id of doc. Objects and arrays are
// rendered as JSON.
func objectID(doc document.Document, attr string) string {
	if attr == "" {
		return ""
	}
	v, ok := doc.Lookup(attr)
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
