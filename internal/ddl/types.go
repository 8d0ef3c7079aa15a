// Package ddl defines a backend-agnostic model for the DDL the engine emits
// (CREATE TABLE and ADD COLUMN) plus the Dialect contract each storage
// backend implements to render it.
package ddl

import (
	"strings"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
)

// ColumnDef describes a single column. Name is unquoted; quoting happens at
// render time.
type ColumnDef struct {
	Name     string
	Type     config.ColumnType
	Nullable bool
}

// TableDef holds the table name in dotted form ("schema.table" or "table")
// and its ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// SplitFQN splits "schema.table" into its parts. schema is empty for bare
// names. Surrounding quotes on either part are removed.
func SplitFQN(fqn string) (schema, table string) {
	fqn = strings.TrimSpace(fqn)
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		return unquote(fqn[:i]), unquote(fqn[i+1:])
	}
	return "", unquote(fqn)
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch {
		case s[0] == '"' && s[len(s)-1] == '"',
			s[0] == '`' && s[len(s)-1] == '`',
			s[0] == '[' && s[len(s)-1] == ']':
			return s[1 : len(s)-1]
		}
	}
	return s
}
