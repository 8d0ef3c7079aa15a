// Package document holds the immutable in-memory form of one input JSON
// document.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Document is one decoded input document tagged with its source collection.
// Numbers decode as json.Number so integers keep full precision.
type Document struct {
	Collection string
	// Index is the position of the document within its collection in the
	// input, starting at 0.
	Index  int
	Fields map[string]any
	// Raw is the document exactly as read from the input.
	Raw json.RawMessage
}

// New decodes raw into a Document. raw must be a JSON object.
func New(collection string, index int, raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return Document{}, fmt.Errorf("document %s[%d]: %w", collection, index, err)
	}
	if fields == nil {
		return Document{}, fmt.Errorf("document %s[%d]: not a JSON object", collection, index)
	}
	return Document{
		Collection: collection,
		Index:      index,
		Fields:     fields,
		Raw:        append(json.RawMessage(nil), raw...),
	}, nil
}

// Lookup returns the value at path. An exact top-level key wins; otherwise
// path is split on dots and walked through nested objects, with numeric
// segments indexing arrays. A JSON null is found with a nil value.
func (d Document) Lookup(path string) (any, bool) {
	if v, ok := d.Fields[path]; ok {
		return v, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}

	var cur any = d.Fields
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// String returns the compact raw JSON text.
func (d Document) String() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, d.Raw); err != nil {
		return string(d.Raw)
	}
	return buf.String()
}
