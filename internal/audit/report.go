package audit

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/classify"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/dates"
)

// CollectionStats are the per-collection document counts of a run.
type CollectionStats struct {
	// Processed counts documents that reached their destination table.
	Processed int
	// Errors counts processed documents with transformation problems.
	Errors int
	// InsertFailures counts documents that were not persisted.
	InsertFailures int
}

// Coverage describes input and catalog gaps known only to the caller.
type Coverage struct {
	// AbsentCollections are mapped collections with no input documents.
	AbsentCollections []string
	// UnmappedCollections appear in the input without a mapping.
	UnmappedCollections []string
	// UnreachableTables could not be reconciled during the run.
	UnreachableTables []string
}

// RunReport aggregates the records of one run.
type RunReport struct {
	IngestionDate string

	Total        int
	ByStatus     map[classify.Status]int
	ByProcessing map[ProcessingStatus]int

	// ObjectStatuses maps each object name to its aggregate status:
	// MISSING if any of its records is MISSING, else NEW if any is NEW,
	// else ALREADY_EXISTS.
	ObjectStatuses map[string]classify.Status
	// MissingColumnsByObject is the sorted union of missing columns per
	// object name.
	MissingColumnsByObject map[string][]string
	DocumentsWithMissing   int

	Collections map[string]CollectionStats
	Coverage    Coverage
}

var statusRank = map[classify.Status]int{
	classify.AlreadyExists: 1,
	classify.New:           2,
	classify.Missing:       3,
}

// Summarize aggregates records. The result does not depend on their order.
func Summarize(records []Record) RunReport {
	rep := RunReport{
		ByStatus:               make(map[classify.Status]int),
		ByProcessing:           make(map[ProcessingStatus]int),
		ObjectStatuses:         make(map[string]classify.Status),
		MissingColumnsByObject: make(map[string][]string),
		Collections:            make(map[string]CollectionStats),
	}
	missing := make(map[string]map[string]struct{})
	var first time.Time

	for _, r := range records {
		rep.Total++
		rep.ByStatus[r.ObjectStatus]++
		rep.ByProcessing[r.ProcessingStatus]++
		if first.IsZero() || (!r.IngestedAt.IsZero() && r.IngestedAt.Before(first)) {
			first = r.IngestedAt
		}

		if cur, ok := rep.ObjectStatuses[r.ObjectName]; !ok || statusRank[r.ObjectStatus] > statusRank[cur] {
			rep.ObjectStatuses[r.ObjectName] = r.ObjectStatus
		}

		if len(r.MissingColumns) > 0 {
			rep.DocumentsWithMissing++
			set, ok := missing[r.ObjectName]
			if !ok {
				set = make(map[string]struct{})
				missing[r.ObjectName] = set
			}
			for _, c := range r.MissingColumns {
				set[c] = struct{}{}
			}
		}

		st := rep.Collections[r.SourceCollection]
		switch r.ProcessingStatus {
		case ProcessingSuccess:
			st.Processed++
			if len(r.Problems) > 0 {
				st.Errors++
			}
		default:
			st.InsertFailures++
		}
		rep.Collections[r.SourceCollection] = st
	}

	for obj, set := range missing {
		cols := make([]string, 0, len(set))
		for c := range set {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		rep.MissingColumnsByObject[obj] = cols
	}
	if !first.IsZero() {
		rep.IngestionDate = dates.Format(first, dates.KindDate)
	}
	return rep
}

// WithCoverage returns rep with c attached, every list sorted.
func (rep RunReport) WithCoverage(c Coverage) RunReport {
	rep.Coverage = Coverage{
		AbsentCollections:   sortedSet(c.AbsentCollections),
		UnmappedCollections: sortedSet(c.UnmappedCollections),
		UnreachableTables:   sortedSet(c.UnreachableTables),
	}
	return rep
}

// MissingObjects returns the sorted object names whose aggregate status is
// MISSING.
func (rep RunReport) MissingObjects() []string {
	var out []string
	for obj, st := range rep.ObjectStatuses {
		if st == classify.Missing {
			out = append(out, obj)
		}
	}
	sort.Strings(out)
	return out
}

// MissingAttributeRow is one row of missing_attributes_report.
type MissingAttributeRow struct {
	IngestionDate  string
	ObjectName     string
	MissingColumns []string
}

// MissingCollectionRow is one row of missing_collections_report.
type MissingCollectionRow struct {
	IngestionDate string
	ObjectName    string
	ObjectStatus  classify.Status
}

// MissingAttributeRows returns one row per object with missing columns,
// sorted by object name.
func MissingAttributeRows(rep RunReport, date time.Time) []MissingAttributeRow {
	day := dates.Format(date.UTC(), dates.KindDate)
	out := make([]MissingAttributeRow, 0, len(rep.MissingColumnsByObject))
	for _, obj := range sortedKeys(rep.MissingColumnsByObject) {
		out = append(out, MissingAttributeRow{
			IngestionDate:  day,
			ObjectName:     obj,
			MissingColumns: append([]string(nil), rep.MissingColumnsByObject[obj]...),
		})
	}
	return out
}

// MissingCollectionRows returns one row per object with its aggregate
// status, sorted by object name.
func MissingCollectionRows(rep RunReport, date time.Time) []MissingCollectionRow {
	day := dates.Format(date.UTC(), dates.KindDate)
	out := make([]MissingCollectionRow, 0, len(rep.ObjectStatuses))
	for _, obj := range sortedKeys(rep.ObjectStatuses) {
		out = append(out, MissingCollectionRow{
			IngestionDate: day,
			ObjectName:    obj,
			ObjectStatus:  rep.ObjectStatuses[obj],
		})
	}
	return out
}

// Summary renders rep as the multi-line run summary logged after a run.
func Summary(rep RunReport) string {
	var processed, errs, failures int
	for _, st := range rep.Collections {
		processed += st.Processed
		errs += st.Errors
		failures += st.InsertFailures
	}
	successful := processed - errs
	if successful < 0 {
		successful = 0
	}

	var b strings.Builder
	b.WriteString("ETL Summary\n")
	fmt.Fprintf(&b, "Ingestion date: %s\n\n", rep.IngestionDate)

	b.WriteString("KPI Summary:\n")
	fmt.Fprintf(&b, "  Total documents: %d\n", processed+failures)
	fmt.Fprintf(&b, "  Successful documents: %d\n", successful)
	fmt.Fprintf(&b, "  Documents with errors: %d\n", errs)
	fmt.Fprintf(&b, "  Documents with missing columns: %d\n", rep.DocumentsWithMissing)
	fmt.Fprintf(&b, "  Insert failures: %d\n", failures)
	fmt.Fprintf(&b, "  NEW: %d  ALREADY_EXISTS: %d  MISSING: %d\n\n",
		rep.ByStatus[classify.New], rep.ByStatus[classify.AlreadyExists], rep.ByStatus[classify.Missing])

	b.WriteString("Input coverage:\n")
	fmt.Fprintf(&b, "  Missing collections: %s\n", formatList(rep.Coverage.AbsentCollections))
	fmt.Fprintf(&b, "  Unmapped collections: %s\n", formatList(rep.Coverage.UnmappedCollections))
	fmt.Fprintf(&b, "  Unreachable tables: %s\n", formatList(rep.Coverage.UnreachableTables))

	if len(rep.Collections) > 0 {
		header := fmt.Sprintf("  %-20s %9s %7s %11s", "Collection", "Processed", "Errors", "InsertFail")
		b.WriteString("\nPer-collection metrics:\n")
		b.WriteString(header + "\n")
		b.WriteString("  " + strings.Repeat("-", len(header)-2) + "\n")
		for _, name := range sortedKeys(rep.Collections) {
			st := rep.Collections[name]
			fmt.Fprintf(&b, "  %-20s %9d %7d %11d\n", name, st.Processed, st.Errors, st.InsertFailures)
		}
	}

	if len(rep.ObjectStatuses) > 0 {
		b.WriteString("\nObject statuses:\n")
		for _, obj := range sortedKeys(rep.ObjectStatuses) {
			fmt.Fprintf(&b, "  - %s: %s\n", obj, rep.ObjectStatuses[obj])
		}
	}

	if len(rep.MissingColumnsByObject) > 0 {
		b.WriteString("\nMissing columns:\n")
		for _, obj := range sortedKeys(rep.MissingColumnsByObject) {
			fmt.Fprintf(&b, "  - %s: %s\n", obj, strings.Join(rep.MissingColumnsByObject[obj], ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
