package config

import (
	"fmt"
	"strings"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/dates"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.kind",
// "collections[1].columns[0].type").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// maxIdentLen is the Postgres identifier limit; longer names are truncated
// by the server.
const maxIdentLen = 63

var knownStorage = map[string]struct{}{
	"postgres": {},
	"sqlite":   {},
	"mssql":    {},
	"mysql":    {},
}

var knownMetrics = map[string]struct{}{
	"none":        {},
	"pushgateway": {},
	"datadog":     {},
}

// ValidateApp performs static validation of an App config. It does not mutate
// the config.
func ValidateApp(a App) []Issue {
	var issues []Issue

	if strings.TrimSpace(a.Job) == "" {
		issues = append(issues, Issue{SeverityError, "job", "job must not be empty; it labels logs and metrics"})
	}

	kind := strings.TrimSpace(a.Storage.Kind)
	switch {
	case kind == "":
		issues = append(issues, Issue{SeverityError, "storage.kind", "storage.kind must not be empty"})
	default:
		if _, ok := knownStorage[kind]; !ok {
			issues = append(issues, Issue{SeverityError, "storage.kind", fmt.Sprintf("unknown storage kind %q", kind)})
		}
	}
	if strings.TrimSpace(a.Storage.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "storage.dsn", "storage.dsn must not be empty (or set " + EnvDSN + ")"})
	}
	if a.Storage.CreateIfMissing && kind != "" && kind != "postgres" {
		issues = append(issues, Issue{SeverityWarning, "storage.create_if_missing", "create_if_missing is only honored for postgres"})
	}

	switch a.Input.Format {
	case "", InputAuto, InputGrouped, InputNDJSON:
	default:
		issues = append(issues, Issue{SeverityError, "input.format", fmt.Sprintf("unknown input format %q; want auto, grouped or ndjson", a.Input.Format)})
	}

	issues = append(issues, validateFormats("runtime.date_formats", a.Runtime.DateFormats)...)
	for k := range a.Runtime.TypeMappings {
		if !NormalizeType(k).Known() {
			issues = append(issues, Issue{SeverityError, "runtime.type_mappings." + k, fmt.Sprintf("unknown logical type %q", k)})
		}
	}

	if _, ok := knownMetrics[a.Metrics.Backend]; !ok && a.Metrics.Backend != "" {
		issues = append(issues, Issue{SeverityError, "metrics.backend", fmt.Sprintf("unknown metrics backend %q", a.Metrics.Backend)})
	}
	if a.Metrics.Backend == "pushgateway" && a.Metrics.PushgatewayURL == "" {
		issues = append(issues, Issue{SeverityError, "metrics.pushgateway_url", "pushgateway backend requires pushgateway_url"})
	}

	switch strings.ToLower(a.Logging.Format) {
	case "", "json", "console":
	default:
		issues = append(issues, Issue{SeverityWarning, "logging.format", fmt.Sprintf("unknown log format %q; using json", a.Logging.Format)})
	}

	return issues
}

// ValidateMapping checks the mapping invariants: unique collections, unique
// destination columns per table (fixed columns included), known types, and
// key attributes that are mapped source attributes.
func ValidateMapping(m Mapping) []Issue {
	var issues []Issue

	if len(m.Collections) == 0 {
		return append(issues, Issue{SeverityError, "collections", "at least one collection mapping is required"})
	}

	seenCollections := make(map[string]int)
	for i, c := range m.Collections {
		base := fmt.Sprintf("collections[%d]", i)

		if c.SourceCollection == "" {
			issues = append(issues, Issue{SeverityError, base + ".source_collection", "source_collection must not be empty"})
		} else if prev, dup := seenCollections[c.SourceCollection]; dup {
			issues = append(issues, Issue{SeverityError, base + ".source_collection",
				fmt.Sprintf("collection %q already mapped at collections[%d]", c.SourceCollection, prev)})
		} else {
			seenCollections[c.SourceCollection] = i
		}

		if c.DestinationTable == "" {
			issues = append(issues, Issue{SeverityError, base + ".destination_table", "destination_table must not be empty"})
		}

		switch c.Duplicates {
		case "", DuplicatesKeep, DuplicatesSkip:
		default:
			issues = append(issues, Issue{SeverityError, base + ".duplicates", fmt.Sprintf("unknown duplicate policy %q; want keep or skip", c.Duplicates)})
		}

		issues = append(issues, validateFormats(base+".date_formats", c.DateFormats)...)
		issues = append(issues, validateColumns(base, c)...)
		issues = append(issues, validateKeys(base, c)...)
	}
	return issues
}

func validateColumns(base string, c CollectionMapping) []Issue {
	var issues []Issue

	if len(c.Columns) == 0 {
		issues = append(issues, Issue{SeverityWarning, base + ".columns", "no columns mapped; only the raw document will be stored"})
	}

	used := make(map[string]string)
	for _, f := range c.FixedColumns() {
		used[strings.ToLower(f)] = "fixed column"
	}
	for j, col := range c.Columns {
		p := fmt.Sprintf("%s.columns[%d]", base, j)
		if col.SourceAttribute == "" {
			issues = append(issues, Issue{SeverityError, p + ".source_attribute", "source_attribute must not be empty"})
		}
		if col.DestinationColumn == "" {
			issues = append(issues, Issue{SeverityError, p + ".destination_column", "destination_column must not be empty"})
			continue
		}
		key := strings.ToLower(col.DestinationColumn)
		if owner, dup := used[key]; dup {
			issues = append(issues, Issue{SeverityError, p + ".destination_column",
				fmt.Sprintf("column %q collides with %s", col.DestinationColumn, owner)})
		} else {
			used[key] = fmt.Sprintf("attribute %q", col.SourceAttribute)
		}
		if len(col.DestinationColumn) > maxIdentLen {
			issues = append(issues, Issue{SeverityWarning, p + ".destination_column",
				fmt.Sprintf("column name longer than %d characters may be truncated by the database", maxIdentLen)})
		}
		if !col.Type.Known() {
			issues = append(issues, Issue{SeverityError, p + ".type", fmt.Sprintf("unsupported type %q", col.Type)})
		}
		if len(col.Formats) > 0 && !col.Type.IsTemporal() {
			issues = append(issues, Issue{SeverityWarning, p + ".formats", "formats are ignored for non-date types"})
		}
		issues = append(issues, validateFormats(p+".formats", col.Formats)...)
	}
	return issues
}

func validateKeys(base string, c CollectionMapping) []Issue {
	var issues []Issue
	if len(c.KeyAttributes) == 0 {
		return append(issues, Issue{SeverityError, base + ".key_attributes", "key_attributes must list at least one attribute"})
	}
	for k, attr := range c.KeyAttributes {
		if _, ok := c.Column(attr); !ok {
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("%s.key_attributes[%d]", base, k),
				fmt.Sprintf("key attribute %q is not a mapped source attribute", attr)})
		}
	}
	return issues
}

func validateFormats(path string, formats []string) []Issue {
	var issues []Issue
	for i, f := range formats {
		if _, err := dates.Compile(f); err != nil {
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("%s[%d]", path, i), err.Error()})
		}
	}
	return issues
}
