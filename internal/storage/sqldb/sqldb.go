// Package sqldb implements storage.Repository on top of database/sql for
// the backends whose drivers plug into it (sqlite, mssql, mysql). Backends
// supply their dialect and error classification; the statements and catalog
// handling live here.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage"
)

// Options describes one backend.
type Options struct {
	// Name prefixes error messages, e.g. "sqlite".
	Name    string
	Dialect ddl.Dialect

	// Columns returns the query listing (name, data_type) pairs of fqn and
	// its arguments.
	Columns func(fqn string) (query string, args []any)

	// Bind converts a value to what the driver expects. nil keeps values.
	Bind func(t config.ColumnType, v any) any

	IsAlreadyExists func(error) bool
	// IsUnavailable adds driver-specific checks to
	// storage.IsConnectionError.
	IsUnavailable func(error) bool
}

// Repository is a database/sql backed storage.Repository.
type Repository struct {
	db  *sql.DB
	opt Options
}

var _ storage.Repository = (*Repository)(nil)

// New wraps an open *sql.DB. The Repository owns db and closes it.
func New(db *sql.DB, opt Options) *Repository {
	return &Repository{db: db, opt: opt}
}

// DB exposes the underlying handle for backend-specific setup.
func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) Dialect() ddl.Dialect { return r.opt.Dialect }

// Snapshot lists the columns of every named table. A table with no columns
// in the catalog is treated as absent.
func (r *Repository) Snapshot(ctx context.Context, tables []string) (storage.Catalog, error) {
	cat := storage.Catalog{Tables: make(map[string]storage.Table, len(tables))}
	for _, name := range tables {
		if _, seen := cat.Tables[name]; seen {
			continue
		}
		cols, err := r.columns(ctx, name)
		if err != nil {
			return storage.Catalog{}, r.wrap(fmt.Sprintf("snapshot %s", name), err)
		}
		if len(cols) > 0 {
			cat.Tables[name] = storage.Table{Name: name, Columns: cols}
		}
	}
	return cat, nil
}

func (r *Repository) columns(ctx context.Context, fqn string) (map[string]string, error) {
	query, args := r.opt.Columns(fqn)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]string)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		cols[strings.ToLower(name)] = typ
	}
	return cols, rows.Err()
}

// Exec runs one DDL statement. "Already exists" errors are success.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, stmt)
	if err != nil && r.opt.IsAlreadyExists != nil && r.opt.IsAlreadyExists(err) {
		return nil
	}
	return r.wrap("exec", err)
}

// Insert writes one row.
func (r *Repository) Insert(ctx context.Context, table string, row storage.Row) error {
	if len(row.Columns) == 0 {
		return fmt.Errorf("%s: insert %s: no columns", r.opt.Name, table)
	}
	if len(row.Values) != len(row.Columns) {
		return fmt.Errorf("%s: insert %s: %d values for %d columns", r.opt.Name, table, len(row.Values), len(row.Columns))
	}
	q := ddl.InsertSQL(r.opt.Dialect, table, row.Columns)
	_, err := r.db.ExecContext(ctx, q, storage.BindRow(row, r.opt.Bind)...)
	return r.wrap(fmt.Sprintf("insert %s", table), err)
}

// Exists runs the dialect's single-row lookup for key.
func (r *Repository) Exists(ctx context.Context, table string, key storage.Row) (bool, error) {
	if len(key.Columns) == 0 {
		return false, fmt.Errorf("%s: exists %s: no key columns", r.opt.Name, table)
	}
	q := r.opt.Dialect.ExistsSQL(table, key.Columns)
	var one int
	err := r.db.QueryRowContext(ctx, q, storage.BindRow(key, r.opt.Bind)...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, r.wrap(fmt.Sprintf("exists %s", table), err)
	}
	return true, nil
}

// Close closes the pool.
func (r *Repository) Close() { _ = r.db.Close() }

func (r *Repository) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	err = fmt.Errorf("%s: %s: %w", r.opt.Name, op, err)
	if storage.IsConnectionError(err) || (r.opt.IsUnavailable != nil && r.opt.IsUnavailable(err)) {
		return storage.Unavailable(err)
	}
	return err
}
