// Package mysql provides a MySQL-backed storage.Repository built on
// go-sql-driver/mysql and database/sql.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	gddl "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage"
	myddl "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage/mysql/ddl"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage/sqldb"
)

// A NULL schema argument falls back to the connection's database.
const columnsSQL = `SELECT COLUMN_NAME, DATA_TYPE
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = COALESCE(?, DATABASE()) AND TABLE_NAME = ?`

var alreadyExists = map[uint16]bool{
	1050: true, // ER_TABLE_EXISTS_ERROR
	1060: true, // ER_DUP_FIELDNAME
	1007: true, // ER_DB_CREATE_EXISTS
}

var unavailable = map[uint16]bool{
	1040: true, // ER_CON_COUNT_ERROR
	1053: true, // ER_SERVER_SHUTDOWN
	2006: true, // CR_SERVER_GONE_ERROR
	2013: true, // CR_SERVER_LOST
}

// Config holds MySQL repository configuration.
type Config struct {
	DSN           string
	TypeOverrides gddl.TypeOverrides
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// NewRepository parses the DSN, opens a pool and pings it.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mcfg, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	conn, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, storage.Unavailable(fmt.Errorf("mysql: ping: %w", err))
	}
	r := New(db, cfg)
	return r, func() { _ = db.Close() }, nil
}

// parseDSN validates dsn and pins the session to UTC so DATETIME values
// written from time.Time keep their canonical instant.
func parseDSN(dsn string) (*mysql.Config, error) {
	mcfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	if mcfg.Params == nil {
		mcfg.Params = map[string]string{}
	}
	if _, ok := mcfg.Params["time_zone"]; !ok {
		mcfg.Params["time_zone"] = "'+00:00'"
	}
	return mcfg, nil
}

// New wraps an open handle.
func New(db *sql.DB, cfg Config) *Repository {
	return &Repository{Repository: sqldb.New(db, sqldb.Options{
		Name:            "mysql",
		Dialect:         myddl.Dialect{Overrides: cfg.TypeOverrides},
		Columns:         columnsQuery,
		Bind:            storage.BindTemporal,
		IsAlreadyExists: isAlreadyExists,
		IsUnavailable:   isUnavailable,
	})}
}

func columnsQuery(fqn string) (string, []any) {
	schema, table := gddl.SplitFQN(fqn)
	var s any
	if schema != "" {
		s = schema
	}
	return columnsSQL, []any{s, table}
}

func isAlreadyExists(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && alreadyExists[me.Number]
}

func isUnavailable(err error) bool {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var me *mysql.MySQLError
	return errors.As(err, &me) && unavailable[me.Number]
}
