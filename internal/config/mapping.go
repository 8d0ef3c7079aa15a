package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ColumnType is the logical type of a mapped column.
type ColumnType string

const (
	TypeText     ColumnType = "text"
	TypeInteger  ColumnType = "integer"
	TypeNumeric  ColumnType = "numeric"
	TypeBoolean  ColumnType = "boolean"
	TypeDate     ColumnType = "date"
	TypeDateTime ColumnType = "datetime"
	TypeJSON     ColumnType = "json"
)

var typeAliases = map[string]ColumnType{
	"text":             TypeText,
	"string":           TypeText,
	"varchar":          TypeText,
	"integer":          TypeInteger,
	"int":              TypeInteger,
	"bigint":           TypeInteger,
	"smallint":         TypeInteger,
	"numeric":          TypeNumeric,
	"decimal":          TypeNumeric,
	"float":            TypeNumeric,
	"double":           TypeNumeric,
	"double precision": TypeNumeric,
	"boolean":          TypeBoolean,
	"bool":             TypeBoolean,
	"date":             TypeDate,
	"datetime":         TypeDateTime,
	"timestamp":        TypeDateTime,
	"timestamptz":      TypeDateTime,
	"json":             TypeJSON,
	"jsonb":            TypeJSON,
	"object":           TypeJSON,
}

// NormalizeType maps an alias to its canonical ColumnType. Unknown names are
// returned lowercased so validation can report them.
func NormalizeType(s string) ColumnType {
	k := strings.ToLower(strings.TrimSpace(s))
	if t, ok := typeAliases[k]; ok {
		return t
	}
	return ColumnType(k)
}

// Known reports whether t is a canonical type.
func (t ColumnType) Known() bool {
	switch t {
	case TypeText, TypeInteger, TypeNumeric, TypeBoolean, TypeDate, TypeDateTime, TypeJSON:
		return true
	}
	return false
}

// IsTemporal reports whether values of t go through date normalization.
func (t ColumnType) IsTemporal() bool { return t == TypeDate || t == TypeDateTime }

// DuplicatePolicy decides what happens to a document whose key already exists.
type DuplicatePolicy string

const (
	// DuplicatesKeep is the default. The duplicate is appended as a new row
	// with status ALREADY_EXISTS, so both raw payloads stay in the table.
	// Existing rows are never updated. Use DuplicatesSkip when a duplicate
	// must be recorded but not re-inserted.
	DuplicatesKeep DuplicatePolicy = "keep"
	// DuplicatesSkip writes nothing for duplicates; only the audit record.
	DuplicatesSkip DuplicatePolicy = "skip"
)

// Fixed columns added to every destination table besides the raw JSON column.
const (
	ColumnIngestedAt       = "ingested_at"
	ColumnSourceCollection = "source_collection"
	ColumnStatus           = "status"

	DefaultRawJSONColumn = "raw_json"
)

// ColumnMapping maps one source attribute to one destination column.
type ColumnMapping struct {
	SourceAttribute   string     `json:"source_attribute" yaml:"source_attribute"`
	DestinationColumn string     `json:"destination_column" yaml:"destination_column"`
	Type              ColumnType `json:"type" yaml:"type"`
	// Formats overrides the candidate date formats for this column.
	Formats []string `json:"formats,omitempty" yaml:"formats,omitempty"`
}

// CollectionMapping maps one source collection to one destination table.
type CollectionMapping struct {
	SourceCollection  string          `json:"source_collection" yaml:"source_collection"`
	DestinationTable  string          `json:"destination_table" yaml:"destination_table"`
	KeyAttributes     []string        `json:"key_attributes" yaml:"key_attributes"`
	ObjectIDAttribute string          `json:"object_id_attribute,omitempty" yaml:"object_id_attribute,omitempty"`
	RawJSONColumn     string          `json:"raw_json_column,omitempty" yaml:"raw_json_column,omitempty"`
	DateFormats       []string        `json:"date_formats,omitempty" yaml:"date_formats,omitempty"`
	Duplicates        DuplicatePolicy `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Columns           []ColumnMapping `json:"columns" yaml:"columns"`
}

// ObjectID returns the attribute recorded as the audit object id.
func (c CollectionMapping) ObjectID() string {
	if c.ObjectIDAttribute != "" {
		return c.ObjectIDAttribute
	}
	if len(c.KeyAttributes) > 0 {
		return c.KeyAttributes[0]
	}
	return ""
}

// RawColumn returns the column holding the verbatim document.
func (c CollectionMapping) RawColumn() string {
	if c.RawJSONColumn != "" {
		return c.RawJSONColumn
	}
	return DefaultRawJSONColumn
}

// FixedColumns returns the non-mapped columns every row carries, in order.
func (c CollectionMapping) FixedColumns() []string {
	return []string{c.RawColumn(), ColumnIngestedAt, ColumnSourceCollection, ColumnStatus}
}

// Column returns the mapping for a source attribute.
func (c CollectionMapping) Column(attr string) (ColumnMapping, bool) {
	for _, col := range c.Columns {
		if col.SourceAttribute == attr {
			return col, true
		}
	}
	return ColumnMapping{}, false
}

// FormatsFor returns the candidate formats for col: its own, then the
// collection's, then fallback.
func (c CollectionMapping) FormatsFor(col ColumnMapping, fallback []string) []string {
	switch {
	case len(col.Formats) > 0:
		return col.Formats
	case len(c.DateFormats) > 0:
		return c.DateFormats
	default:
		return fallback
	}
}

// Collections is the ordered list of collection mappings. It decodes from
// either a list or the keyed form
//
//	collections:
//	  customers:
//	    target_table: public.customers
//	    object_id_attribute: customer_id
//	    mappings:
//	      customer_id: {column: customer_id, type: integer}
//
// Keyed entries are sorted by collection name.
type Collections []CollectionMapping

// Mapping is the collection mapping config.
type Mapping struct {
	Collections Collections `json:"collections" yaml:"collections"`
}

// Lookup finds the mapping for a source collection.
func (m Mapping) Lookup(collection string) (CollectionMapping, bool) {
	for _, c := range m.Collections {
		if c.SourceCollection == collection {
			return c, true
		}
	}
	return CollectionMapping{}, false
}

type keyedColumn struct {
	Column  string   `json:"column" yaml:"column"`
	Type    string   `json:"type" yaml:"type"`
	Formats []string `json:"formats" yaml:"formats"`
}

type keyedCollection struct {
	TargetTable       string                 `json:"target_table" yaml:"target_table"`
	RawJSONColumn     string                 `json:"raw_json_column" yaml:"raw_json_column"`
	ObjectIDAttribute string                 `json:"object_id_attribute" yaml:"object_id_attribute"`
	KeyAttributes     []string               `json:"key_attributes" yaml:"key_attributes"`
	DateFormats       []string               `json:"date_formats" yaml:"date_formats"`
	Duplicates        string                 `json:"duplicates" yaml:"duplicates"`
	Mappings          map[string]keyedColumn `json:"mappings" yaml:"mappings"`
}

func fromKeyed(in map[string]keyedCollection) Collections {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(Collections, 0, len(names))
	for _, name := range names {
		kc := in[name]
		attrs := make([]string, 0, len(kc.Mappings))
		for a := range kc.Mappings {
			attrs = append(attrs, a)
		}
		sort.Strings(attrs)

		cm := CollectionMapping{
			SourceCollection:  name,
			DestinationTable:  kc.TargetTable,
			KeyAttributes:     kc.KeyAttributes,
			ObjectIDAttribute: kc.ObjectIDAttribute,
			RawJSONColumn:     kc.RawJSONColumn,
			DateFormats:       kc.DateFormats,
			Duplicates:        DuplicatePolicy(kc.Duplicates),
		}
		if len(cm.KeyAttributes) == 0 && kc.ObjectIDAttribute != "" {
			cm.KeyAttributes = []string{kc.ObjectIDAttribute}
		}
		for _, a := range attrs {
			col := kc.Mappings[a]
			cm.Columns = append(cm.Columns, ColumnMapping{
				SourceAttribute:   a,
				DestinationColumn: col.Column,
				Type:              ColumnType(col.Type),
				Formats:           col.Formats,
			})
		}
		out = append(out, cm)
	}
	return out
}

// UnmarshalJSON accepts the list and keyed forms.
func (c *Collections) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	switch {
	case strings.HasPrefix(trimmed, "["):
		var list []CollectionMapping
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*c = list
	case strings.HasPrefix(trimmed, "{"):
		var keyed map[string]keyedCollection
		if err := json.Unmarshal(b, &keyed); err != nil {
			return err
		}
		*c = fromKeyed(keyed)
	case trimmed == "null":
		*c = nil
	default:
		return fmt.Errorf("collections: expected list or object")
	}
	return nil
}

// UnmarshalYAML accepts the list and keyed forms.
func (c *Collections) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []CollectionMapping
		if err := node.Decode(&list); err != nil {
			return err
		}
		*c = list
	case yaml.MappingNode:
		var keyed map[string]keyedCollection
		if err := node.Decode(&keyed); err != nil {
			return err
		}
		*c = fromKeyed(keyed)
	default:
		return fmt.Errorf("collections: line %d: expected list or mapping", node.Line)
	}
	return nil
}

// normalize trims names, canonicalizes type aliases and fills defaults.
func (m *Mapping) normalize() {
	for i := range m.Collections {
		c := &m.Collections[i]
		c.SourceCollection = strings.TrimSpace(c.SourceCollection)
		c.DestinationTable = strings.TrimSpace(c.DestinationTable)
		if c.Duplicates == "" {
			c.Duplicates = DuplicatesKeep
		}
		c.Duplicates = DuplicatePolicy(strings.ToLower(string(c.Duplicates)))
		for j := range c.Columns {
			col := &c.Columns[j]
			col.SourceAttribute = strings.TrimSpace(col.SourceAttribute)
			col.DestinationColumn = strings.TrimSpace(col.DestinationColumn)
			if col.DestinationColumn == "" {
				col.DestinationColumn = strings.ReplaceAll(col.SourceAttribute, ".", "_")
			}
			col.Type = NormalizeType(string(col.Type))
		}
	}
}
