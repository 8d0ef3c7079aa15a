// Package scaffold infers a starting collection mapping from sample
// documents: attribute paths, column names, column types, date layouts and
// the object-id attribute. The result is meant to be reviewed and edited.
package scaffold

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/document"
)

// Options controls inference.
type Options struct {
	// Schema qualifies every destination table. Empty leaves names bare.
	Schema string
	// Flatten maps nested object fields to dotted attributes instead of one
	// json column.
	Flatten bool
}

// value kinds observed in samples
const (
	kindInteger = "integer"
	kindNumeric = "numeric"
	kindBoolean = "boolean"
	kindDate    = "date"
	kindStamp   = "datetime"
	kindText    = "text"
	kindJSON    = "json"
)

// Infer builds one collection mapping per collection in docs, in
// first-seen order. Attributes are sorted.
func Infer(docs []document.Document, opt Options) config.Mapping {
	var order []string
	byCollection := make(map[string][]document.Document)
	for _, d := range docs {
		if _, ok := byCollection[d.Collection]; !ok {
			order = append(order, d.Collection)
		}
		byCollection[d.Collection] = append(byCollection[d.Collection], d)
	}

	var m config.Mapping
	for _, name := range order {
		m.Collections = append(m.Collections, inferCollection(name, byCollection[name], opt))
	}
	return m
}

func inferCollection(name string, docs []document.Document, opt Options) config.CollectionMapping {
	samples := make(map[string][]any)
	for _, d := range docs {
		flat := make(map[string]any)
		flatten("", d.Fields, flat, opt.Flatten)
		for k, v := range flat {
			samples[k] = append(samples[k], v)
		}
	}
	attrs := make([]string, 0, len(samples))
	for a := range samples {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)

	cm := config.CollectionMapping{
		SourceCollection: name,
		DestinationTable: tableName(name, opt.Schema),
		RawJSONColumn:    config.DefaultRawJSONColumn,
		Duplicates:       config.DuplicatesKeep,
	}
	names := newUniqueNames(cm.FixedColumns()...)
	for _, a := range attrs {
		typ, formats := inferType(samples[a])
		cm.Columns = append(cm.Columns, config.ColumnMapping{
			SourceAttribute:   a,
			DestinationColumn: names.take(normalizeName(a)),
			Type:              typ,
			Formats:           formats,
		})
	}

	if id := selectObjectID(attrs); id != "" {
		cm.ObjectIDAttribute = id
		cm.KeyAttributes = []string{id}
	}
	return cm
}

func tableName(collection, schema string) string {
	t := normalizeName(collection)
	if schema == "" {
		return t
	}
	return schema + "." + t
}

// selectObjectID prefers _id, then id, then the first attribute.
func selectObjectID(attrs []string) string {
	for _, want := range []string{"_id", "id"} {
		for _, a := range attrs {
			if a == want {
				return a
			}
		}
	}
	if len(attrs) > 0 {
		return attrs[0]
	}
	return ""
}

// flatten copies in to out. With nested set, objects recurse into dotted
// keys; arrays are always kept whole.
func flatten(prefix string, in map[string]any, out map[string]any, nested bool) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if obj, ok := v.(map[string]any); ok && nested && len(obj) > 0 {
			flatten(key, obj, out, nested)
			continue
		}
		out[key] = v
	}
}

// inferType merges the kinds of all non-null samples. Integers widen to
// numeric and dates to datetime; any other mix is text. Temporal types come
// with the best matching layout per sample kind.
func inferType(values []any) (config.ColumnType, []string) {
	kinds := make(map[string]struct{})
	var dateSamples, stampSamples []string
	for _, v := range values {
		if v == nil {
			continue
		}
		k := valueKind(v)
		kinds[k] = struct{}{}
		switch k {
		case kindDate:
			dateSamples = append(dateSamples, strings.TrimSpace(v.(string)))
		case kindStamp:
			stampSamples = append(stampSamples, strings.TrimSpace(v.(string)))
		}
	}

	switch {
	case len(kinds) == 0:
		return config.TypeText, nil
	case only(kinds, kindInteger):
		return config.TypeInteger, nil
	case only(kinds, kindInteger, kindNumeric):
		return config.TypeNumeric, nil
	case only(kinds, kindBoolean):
		return config.TypeBoolean, nil
	case only(kinds, kindJSON):
		return config.TypeJSON, nil
	case only(kinds, kindDate):
		return config.TypeDate, layouts(
			selectBestLayout(dateSamples, dateLayouts, dateLayoutPreference))
	case only(kinds, kindDate, kindStamp):
		return config.TypeDateTime, layouts(
			selectBestLayout(stampSamples, timestampLayouts, timestampLayoutPreference),
			selectBestLayout(dateSamples, dateLayouts, dateLayoutPreference))
	default:
		return config.TypeText, nil
	}
}

func layouts(in ...string) []string {
	var out []string
	for _, l := range in {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// only reports whether every kind in set is one of allowed.
func only(set map[string]struct{}, allowed ...string) bool {
	for k := range set {
		ok := false
		for _, a := range allowed {
			if k == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func valueKind(v any) string {
	switch x := v.(type) {
	case bool:
		return kindBoolean
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return kindInteger
		}
		return kindNumeric
	case float64:
		if x == float64(int64(x)) {
			return kindInteger
		}
		return kindNumeric
	case string:
		if ok, hasTime := temporalKind(x); ok {
			if hasTime {
				return kindStamp
			}
			return kindDate
		}
		return kindText
	case map[string]any, []any:
		return kindJSON
	default:
		return kindText
	}
}

// Marshal renders m as YAML, or as indented JSON when format is "json".
func Marshal(m config.Mapping, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		b, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case "", "yaml", "yml":
		return yaml.Marshal(m)
	default:
		return nil, fmt.Errorf("scaffold: unknown output format %q", format)
	}
}
