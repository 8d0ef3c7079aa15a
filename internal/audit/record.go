// Package audit builds the per-document audit trail of a run and derives
// the run report and report-table rows from it.
//
// Records are immutable once built. Aggregation in Summarize does not depend
// on record order, so two runs over the same documents in a different order
// report the same thing.
package audit

import (
	"sort"
	"time"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/classify"
)

// ProcessingStatus is the outcome of persisting one document.
type ProcessingStatus string

const (
	ProcessingSuccess ProcessingStatus = "success"
	ProcessingError   ProcessingStatus = "error"
	// ProcessingMissing marks documents that had nowhere to go: no mapping
	// or an unreachable destination table.
	ProcessingMissing ProcessingStatus = "missing"
)

// Record is one row of ingestion_audit.
type Record struct {
	IngestedAt       time.Time
	ObjectID         string
	SourceCollection string
	// ObjectName is the destination table, or the source collection when
	// no mapping exists.
	ObjectName       string
	ObjectStatus     classify.Status
	MissingColumns   []string
	ProcessingStatus ProcessingStatus

	// Problems holds transformation errors for the run summary. It is not
	// persisted.
	Problems []string
}

// Entry is the input of Build.
type Entry struct {
	ObjectID         string
	SourceCollection string
	ObjectName       string
	ObjectStatus     classify.Status
	MissingColumns   []string
	ProcessingStatus ProcessingStatus
	Problems         []string
	IngestedAt       time.Time
}

// Build returns the record for e. Missing columns are copied, deduplicated
// and sorted; IngestedAt is stored in UTC.
func Build(e Entry) Record {
	return Record{
		IngestedAt:       e.IngestedAt.UTC(),
		ObjectID:         e.ObjectID,
		SourceCollection: e.SourceCollection,
		ObjectName:       e.ObjectName,
		ObjectStatus:     e.ObjectStatus,
		MissingColumns:   sortedSet(e.MissingColumns),
		ProcessingStatus: e.ProcessingStatus,
		Problems:         append([]string(nil), e.Problems...),
	}
}

func sortedSet(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
