// Package sqlite implements a SQLite-backed storage.Repository.
package sqlite

import gddl "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:etl.db?_pragma=busy_timeout(5000)"
	//   ":memory:"
	DSN string

	// TypeOverrides replaces the declared column types the dialect picks.
	TypeOverrides gddl.TypeOverrides
}
