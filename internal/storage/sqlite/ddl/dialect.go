// Package ddl renders SQLite DDL for the generic ddl model.
//
// SQLite has no schemas beyond attached databases, so qualifiers other than
// main and temp are dropped: "public.customers" becomes "customers".
package ddl

import (
	"fmt"
	"strings"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	gddl "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"
)

// Dialect is the SQLite dialect.
type Dialect struct {
	Overrides gddl.TypeOverrides
}

func (Dialect) Name() string { return "sqlite" }

// MapType returns declared types that round-trip through PRAGMA table_info
// into the same type family.
func (d Dialect) MapType(t config.ColumnType) string {
	if s, ok := d.Overrides.Lookup(t); ok {
		return s
	}
	switch t {
	case config.TypeInteger:
		return "INTEGER"
	case config.TypeNumeric:
		return "REAL"
	case config.TypeBoolean:
		return "BOOLEAN"
	case config.TypeDate:
		return "DATE"
	case config.TypeDateTime:
		return "DATETIME"
	case config.TypeJSON:
		return "JSON"
	default:
		return "TEXT"
	}
}

func (Dialect) QuoteIdent(name string) string { return quoteIdent(name) }
func (Dialect) QuoteTable(fqn string) string  { return quoteFQN(fqn) }
func (Dialect) Placeholder(int) string        { return "?" }

// CreateTable renders CREATE TABLE IF NOT EXISTS.
func (d Dialect) CreateTable(t gddl.TableDef) ([]string, error) {
	if err := gddl.Validate(t); err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		quoteFQN(t.FQN), gddl.ColumnList(d, t))}, nil
}

// AddColumn renders ALTER TABLE ... ADD COLUMN. SQLite has no IF NOT EXISTS
// here; the repository swallows "duplicate column name".
func (d Dialect) AddColumn(table string, c gddl.ColumnDef) ([]string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("ddl: empty column name for %s", table)
	}
	return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteFQN(table), gddl.ColumnSQL(d, c))}, nil
}

func (d Dialect) ExistsSQL(table string, cols []string) string {
	return fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIMIT 1", quoteFQN(table), gddl.WhereEquals(d, cols))
}

// TableName returns the unqualified name SQLite sees for fqn.
func TableName(fqn string) (schema, table string) {
	schema, table = gddl.SplitFQN(fqn)
	switch strings.ToLower(schema) {
	case "main", "temp":
		return schema, table
	}
	return "", table
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func quoteFQN(fqn string) string {
	schema, table := TableName(fqn)
	if schema == "" {
		return quoteIdent(table)
	}
	return quoteIdent(schema) + "." + quoteIdent(table)
}
