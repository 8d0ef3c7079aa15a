// Package etlerr defines the error taxonomy shared by the ingestion engine.
//
// Only CatalogUnavailableError aborts a run. Every other error is converted
// into audit record fields by the orchestrator and the batch continues.
package etlerr

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError reports a value that matched none of the candidate formats.
type ParseError struct {
	Value   any
	Formats []string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %v with formats [%s]: %v", e.Value, strings.Join(e.Formats, ", "), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MappingAbsentError reports a document whose collection has no mapping.
type MappingAbsentError struct {
	Collection string
}

func (e *MappingAbsentError) Error() string {
	return fmt.Sprintf("no mapping for collection %q", e.Collection)
}

// SchemaError reports a table that could not be reconciled. The table is
// treated as unreachable for the rest of the run.
type SchemaError struct {
	Table  string
	Column string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("schema %s.%s: %v", e.Table, e.Column, e.Err)
	}
	return fmt.Sprintf("schema %s: %v", e.Table, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// PersistenceError reports a failed row insert.
type PersistenceError struct {
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("insert into %s: %v", e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CatalogUnavailableError reports lost connectivity to the relational
// catalog. It is the only fatal error of a run.
type CatalogUnavailableError struct {
	Op  string
	Err error
}

func (e *CatalogUnavailableError) Error() string {
	return fmt.Sprintf("catalog unavailable during %s: %v", e.Op, e.Err)
}

func (e *CatalogUnavailableError) Unwrap() error { return e.Err }

// ConfigError reports an unreadable or invalid configuration file.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// InputError reports an input payload that cannot be decoded into documents.
type InputError struct {
	Source string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input %s: %v", e.Source, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// IsFatal reports whether err must abort the remaining run.
func IsFatal(err error) bool {
	var ce *CatalogUnavailableError
	return errors.As(err, &ce)
}
