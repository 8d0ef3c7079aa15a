// Package mssql implements a Microsoft SQL Server repository on top of
// go-mssqldb and database/sql.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	gddl "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage"
	msddl "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage/mssql/ddl"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage/sqldb"
)

const columnsSQL = `SELECT COLUMN_NAME, DATA_TYPE
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2`

// Server error numbers for objects that already exist.
var alreadyExists = map[int32]bool{
	2714: true, // object already exists
	2705: true, // column names must be unique
	1913: true, // index already exists
}

// Config holds MSSQL repository configuration.
type Config struct {
	DSN           string
	TypeOverrides gddl.TypeOverrides
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, storage.Unavailable(fmt.Errorf("mssql: ping: %w", err))
	}
	r := New(db, cfg)
	return r, func() { _ = db.Close() }, nil
}

// New wraps an open handle.
func New(db *sql.DB, cfg Config) *Repository {
	return &Repository{Repository: sqldb.New(db, sqldb.Options{
		Name:            "mssql",
		Dialect:         msddl.Dialect{Overrides: cfg.TypeOverrides},
		Columns:         columnsQuery,
		Bind:            storage.BindTemporal,
		IsAlreadyExists: isAlreadyExists,
		IsUnavailable:   isUnavailable,
	})}
}

func columnsQuery(fqn string) (string, []any) {
	schema, table := gddl.SplitFQN(fqn)
	if schema == "" {
		schema = msddl.DefaultSchema
	}
	return columnsSQL, []any{schema, table}
}

func isAlreadyExists(err error) bool {
	var me mssql.Error
	return errors.As(err, &me) && alreadyExists[me.SQLErrorNumber()]
}

// isUnavailable treats severity 20 and above as fatal to the connection.
func isUnavailable(err error) bool {
	var me mssql.Error
	return errors.As(err, &me) && me.Class >= 20
}
