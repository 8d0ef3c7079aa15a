// Package postgres implements a Postgres repository using pgx v5. Catalog
// snapshots read information_schema; rows are inserted one statement at a
// time so every document gets its own outcome.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	gddl "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage"
	pgddl "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage/postgres/ddl"
)

// DefaultSchema qualifies bare table names in catalog lookups.
const DefaultSchema = "public"

const columnsSQL = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2`

// Config holds Postgres repository configuration.
type Config struct {
	DSN string // connection string for pgxpool

	// CreateIfMissing creates the DSN's database through AdminDatabase when
	// the server reports it does not exist.
	CreateIfMissing bool
	AdminDatabase   string

	TypeOverrides gddl.TypeOverrides
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool    *pgxpool.Pool
	dialect pgddl.Dialect
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres dsn: %w", err)
	}

	pool, err := connect(ctx, pcfg)
	if err != nil && cfg.CreateIfMissing && isUndefinedDatabase(err) {
		if cerr := ensureDatabase(ctx, pcfg.ConnConfig, cfg.AdminDatabase); cerr != nil {
			return nil, nil, cerr
		}
		pool, err = connect(ctx, pcfg)
	}
	if err != nil {
		return nil, nil, classify("connect", err)
	}

	r := &Repository{pool: pool, dialect: pgddl.Dialect{Overrides: cfg.TypeOverrides}}
	return r, func() { pool.Close() }, nil
}

func connect(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

func (r *Repository) Dialect() gddl.Dialect { return r.dialect }

// Snapshot reads information_schema.columns for each table.
func (r *Repository) Snapshot(ctx context.Context, tables []string) (storage.Catalog, error) {
	cat := storage.Catalog{Tables: make(map[string]storage.Table, len(tables))}
	for _, name := range tables {
		if _, seen := cat.Tables[name]; seen {
			continue
		}
		cols, err := r.columns(ctx, name)
		if err != nil {
			return storage.Catalog{}, classify("snapshot "+name, err)
		}
		if len(cols) > 0 {
			cat.Tables[name] = storage.Table{Name: name, Columns: cols}
		}
	}
	return cat, nil
}

func (r *Repository) columns(ctx context.Context, fqn string) (map[string]string, error) {
	schema, table := gddl.SplitFQN(fqn)
	if schema == "" {
		schema = DefaultSchema
	}
	rows, err := r.pool.Query(ctx, columnsSQL, schema, table)
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

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	_, err := r.pool.Exec(ctx, stmt)
	if err != nil && isAlreadyExists(err) {
		return nil
	}
	return classify("exec", err)
}

// Insert writes one row with canonical dates bound as time.Time.
func (r *Repository) Insert(ctx context.Context, table string, row storage.Row) error {
	if len(row.Columns) == 0 || len(row.Values) != len(row.Columns) {
		return fmt.Errorf("postgres: insert %s: %d values for %d columns", table, len(row.Values), len(row.Columns))
	}
	q := gddl.InsertSQL(r.dialect, table, row.Columns)
	_, err := r.pool.Exec(ctx, q, storage.BindRow(row, storage.BindTemporal)...)
	return classify("insert "+table, err)
}

// Exists looks for a row matching key.
func (r *Repository) Exists(ctx context.Context, table string, key storage.Row) (bool, error) {
	if len(key.Columns) == 0 {
		return false, fmt.Errorf("postgres: exists %s: no key columns", table)
	}
	var one int
	err := r.pool.QueryRow(ctx, r.dialect.ExistsSQL(table, key.Columns),
		storage.BindRow(key, storage.BindTemporal)...).Scan(&one)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case err != nil:
		return false, classify("exists "+table, err)
	}
	return true, nil
}

// Close is a no-op; the pool is closed by the function NewRepository returns.
func (r *Repository) Close() {}
