// Package json decodes input payloads into documents.
//
// Two shapes are understood:
//
//   - grouped: one object keyed by collection name whose values are arrays
//     of documents, e.g. {"customers":[{...}], "orders":[{...}]}
//   - stream: NDJSON or a top-level array of documents, each naming its
//     collection in a field (default "source_collection").
//
// Decoding keeps collection order as it appears in the input and preserves
// each document's raw bytes.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/document"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/etlerr"
)

// Options controls decoding.
type Options struct {
	// Format is config.InputGrouped, config.InputNDJSON or config.InputAuto.
	Format string
	// CollectionField names the collection in stream mode.
	CollectionField string
}

// Rejected describes an input value that could not become a document.
type Rejected struct {
	Collection string
	Index      int
	Reason     string
}

// Result is the outcome of decoding one payload.
type Result struct {
	Documents []document.Document
	Rejected  []Rejected
	// Collections lists collection names in first-seen order.
	Collections []string
}

// Decode reads r fully and decodes it into documents. source names the input
// in errors. Values that are not JSON objects are rejected individually;
// syntax errors fail the whole payload with an *etlerr.InputError.
func Decode(r io.Reader, source string, opt Options) (Result, error) {
	if opt.CollectionField == "" {
		opt.CollectionField = "source_collection"
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return Result{}, &etlerr.InputError{Source: source, Err: err}
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return Result{}, nil
	}

	format := opt.Format
	if format == "" || format == config.InputAuto {
		format = detect(b, opt.CollectionField)
	}

	var res Result
	switch format {
	case config.InputGrouped:
		res, err = decodeGrouped(b)
	case config.InputNDJSON:
		res, err = decodeStream(b, opt.CollectionField)
	default:
		err = fmt.Errorf("unknown input format %q", format)
	}
	if err != nil {
		return Result{}, &etlerr.InputError{Source: source, Err: err}
	}
	return res, nil
}

// detect picks the stream format for arrays, multi-value payloads and single
// objects carrying the collection field; anything else is grouped.
func detect(b []byte, field string) string {
	if b[0] == '[' {
		return config.InputNDJSON
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	var first map[string]json.RawMessage
	if err := dec.Decode(&first); err != nil {
		return config.InputGrouped
	}
	if dec.More() {
		return config.InputNDJSON
	}
	if _, ok := first[field]; ok {
		return config.InputNDJSON
	}
	return config.InputGrouped
}

func decodeGrouped(b []byte) (Result, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Result{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Result{}, errors.New("grouped input must be a JSON object keyed by collection")
	}

	var res Result
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Result{}, err
		}
		name, _ := keyTok.(string)

		var items []json.RawMessage
		if err := dec.Decode(&items); err != nil {
			return Result{}, fmt.Errorf("collection %q: expected an array of documents: %w", name, err)
		}
		res.Collections = append(res.Collections, name)
		for i, raw := range items {
			doc, err := document.New(name, i, raw)
			if err != nil {
				res.Rejected = append(res.Rejected, Rejected{Collection: name, Index: i, Reason: err.Error()})
				continue
			}
			res.Documents = append(res.Documents, doc)
		}
	}
	if _, err := dec.Token(); err != nil {
		return Result{}, err
	}
	return res, nil
}

func decodeStream(b []byte, field string) (Result, error) {
	var values []json.RawMessage
	if b[0] == '[' {
		if err := json.Unmarshal(b, &values); err != nil {
			return Result{}, err
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(b))
		for {
			var raw json.RawMessage
			err := dec.Decode(&raw)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return Result{}, err
			}
			values = append(values, raw)
		}
	}

	var res Result
	seen := make(map[string]int)
	for pos, raw := range values {
		d, err := document.New("", pos, raw)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejected{Index: pos, Reason: err.Error()})
			continue
		}
		// Documents without a collection keep an empty name and are
		// classified MISSING downstream.
		name, _ := d.Fields[field].(string)
		if _, ok := seen[name]; !ok {
			res.Collections = append(res.Collections, name)
		}
		d.Collection = name
		d.Index = seen[name]
		seen[name]++
		res.Documents = append(res.Documents, d)
	}
	return res, nil
}
