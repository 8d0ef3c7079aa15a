// Package storage contains the storage-agnostic contracts the engine talks
// to: a live schema catalog, idempotent DDL execution, row inserts and key
// existence checks. Concrete backends register a Factory for their kind in
// init; importing storage/all enables every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"
)

// Row is one set of column values aligned by index. Types carries the
// logical type of each value so backends can bind it natively.
type Row struct {
	Columns []string
	Types   []config.ColumnType
	Values  []any
}

// Append adds one column to r.
func (r *Row) Append(col string, t config.ColumnType, v any) {
	r.Columns = append(r.Columns, col)
	r.Types = append(r.Types, t)
	r.Values = append(r.Values, v)
}

// Table is the catalog view of one existing table.
type Table struct {
	Name string
	// Columns maps lowercased column names to the catalog data type.
	Columns map[string]string
}

// Column returns the catalog type of name, matched case-insensitively.
func (t Table) Column(name string) (string, bool) {
	typ, ok := t.Columns[strings.ToLower(name)]
	return typ, ok
}

// Catalog is a point-in-time snapshot of the tables a run cares about.
// Tables absent from the database are absent from the map.
type Catalog struct {
	Tables map[string]Table
}

// Lookup returns the table snapshotted under name.
func (c Catalog) Lookup(name string) (Table, bool) {
	t, ok := c.Tables[name]
	return t, ok
}

// Repository is the backend-agnostic handle the engine uses for one run.
//
// Exec must treat "already exists" failures for tables, schemas and columns
// as success. Errors caused by losing the database wrap ErrUnavailable.
type Repository interface {
	Dialect() ddl.Dialect
	// Snapshot reads the columns of the named tables. Names are returned
	// as given.
	Snapshot(ctx context.Context, tables []string) (Catalog, error)
	Exec(ctx context.Context, stmt string) error
	Insert(ctx context.Context, table string, row Row) error
	// Exists reports whether a row matching every key column exists.
	Exists(ctx context.Context, table string, key Row) (bool, error)
	Close()
}

// Config carries backend-agnostic connection settings.
type Config struct {
	Kind string
	DSN  string

	// CreateIfMissing lets backends that support it create the target
	// database through AdminDatabase on first connect.
	CreateIfMissing bool
	AdminDatabase   string

	TypeOverrides ddl.TypeOverrides
}

// FromApp builds a Config from the application storage section.
func FromApp(app config.App) Config {
	return Config{
		Kind:            app.Storage.Kind,
		DSN:             app.Storage.DSN,
		CreateIfMissing: app.Storage.CreateIfMissing,
		AdminDatabase:   app.Storage.AdminDatabase,
		TypeOverrides:   ddl.ParseTypeOverrides(app.Runtime.TypeMappings),
	}
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the Factory for kind. Backends call it
// from init.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted copy of the registered kinds.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
