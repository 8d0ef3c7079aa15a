// Package resolve turns document attributes into destination column values.
package resolve

import (
	"errors"
	"sort"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/dates"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/document"
)

// ColumnValue is the resolved value of one mapped attribute. When Present is
// false, Value is nil and the attribute counts as missing.
type ColumnValue struct {
	Value   any
	Present bool
}

// ErrAbsent marks an attribute that is not in the document or is JSON null.
var ErrAbsent = errors.New("attribute absent")

// Resolve looks up col.SourceAttribute in doc. Date and datetime values are
// normalized using col.Formats, or defaults when the column declares none;
// an unparseable date resolves the same as an absent attribute. Other values
// pass through unchanged.
func Resolve(doc document.Document, col config.ColumnMapping, defaults []string) ColumnValue {
	cv, _ := resolve(doc, col, defaults)
	return cv
}

func resolve(doc document.Document, col config.ColumnMapping, defaults []string) (ColumnValue, error) {
	v, ok := doc.Lookup(col.SourceAttribute)
	if !ok || v == nil {
		return ColumnValue{}, ErrAbsent
	}
	if !col.Type.IsTemporal() {
		return ColumnValue{Value: v, Present: true}, nil
	}

	formats := col.Formats
	if len(formats) == 0 {
		formats = defaults
	}
	kind := dates.KindDate
	if col.Type == config.TypeDateTime {
		kind = dates.KindDateTime
	}
	s, err := dates.Normalize(v, formats, kind)
	if err != nil {
		return ColumnValue{}, err
	}
	return ColumnValue{Value: s, Present: true}, nil
}

// Problem records why a present attribute still ended up missing.
type Problem struct {
	Attribute string
	Err       error
}

// Row is a fully resolved and coerced collection mapping for one document.
// Slices are parallel and follow the mapping's column order.
type Row struct {
	Attributes []string
	Columns    []string
	Types      []config.ColumnType
	Values     []any

	// Missing is the sorted set of source attributes that resolved to NULL.
	Missing []string
	// Problems lists attributes that were present but unusable.
	Problems []Problem
}

// Value returns the coerced value for a source attribute.
func (r Row) Value(attr string) (any, bool) {
	for i, a := range r.Attributes {
		if a == attr {
			return r.Values[i], r.Values[i] != nil
		}
	}
	return nil, false
}

// ResolveAll resolves and coerces every column of cm. Date formats fall back
// from the column to the collection to runtimeFormats.
func ResolveAll(doc document.Document, cm config.CollectionMapping, runtimeFormats []string) Row {
	n := len(cm.Columns)
	row := Row{
		Attributes: make([]string, 0, n),
		Columns:    make([]string, 0, n),
		Types:      make([]config.ColumnType, 0, n),
		Values:     make([]any, 0, n),
	}
	missing := make(map[string]struct{})

	for _, col := range cm.Columns {
		formats := cm.FormatsFor(col, runtimeFormats)
		cv, err := resolve(doc, col, formats)

		var value any
		if cv.Present {
			v, cerr := Coerce(col.Type, cv.Value)
			if cerr != nil {
				err = cerr
			} else {
				value = v
			}
		}
		if value == nil {
			missing[col.SourceAttribute] = struct{}{}
			if err != nil && !errors.Is(err, ErrAbsent) {
				row.Problems = append(row.Problems, Problem{Attribute: col.SourceAttribute, Err: err})
			}
		}

		row.Attributes = append(row.Attributes, col.SourceAttribute)
		row.Columns = append(row.Columns, col.DestinationColumn)
		row.Types = append(row.Types, col.Type)
		row.Values = append(row.Values, value)
	}

	row.Missing = make([]string, 0, len(missing))
	for a := range missing {
		row.Missing = append(row.Missing, a)
	}
	sort.Strings(row.Missing)
	return row
}
