package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage/sqldb"
	sqliteddl "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage/sqlite/ddl"
)

// Primary result codes that mean the database file itself is unusable.
const (
	codeIOErr    = 10
	codeCorrupt  = 11
	codeCantOpen = 14
	codeNotADB   = 26
)

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// Open opens a SQLite handle limited to one connection, so ":memory:"
// databases are shared by every statement of the run.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewRepository opens a SQLite connection using the provided DSN and returns
// a Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}

	// Apply a basic ping with context to fail fast on invalid DSNs.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")

	r := New(db, cfg)
	return r, func() { db.Close() }, nil
}

// New wraps an open handle.
func New(db *sql.DB, cfg Config) *Repository {
	return &Repository{Repository: sqldb.New(db, sqldb.Options{
		Name:            "sqlite",
		Dialect:         sqliteddl.Dialect{Overrides: cfg.TypeOverrides},
		Columns:         columnsQuery,
		IsAlreadyExists: isAlreadyExists,
		IsUnavailable:   isUnavailable,
	})}
}

// columnsQuery reads declared column types through pragma_table_info. Only
// main and temp qualifiers are kept.
func columnsQuery(fqn string) (string, []any) {
	schema, table := sqliteddl.TableName(fqn)
	if schema == "" {
		return "SELECT name, type FROM pragma_table_info(?)", []any{table}
	}
	return "SELECT name, type FROM pragma_table_info(?, ?)", []any{table, schema}
}

func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column name") || strings.Contains(msg, "already exists")
}

func isUnavailable(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case codeIOErr, codeCorrupt, codeCantOpen, codeNotADB:
		return true
	}
	return false
}
