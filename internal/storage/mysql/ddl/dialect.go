// Package ddl renders MySQL DDL for the generic ddl model. A schema
// qualifier names a database.
package ddl

import (
	"fmt"
	"strings"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	gddl "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"
)

// Dialect is the MySQL dialect.
type Dialect struct {
	Overrides gddl.TypeOverrides
}

func (Dialect) Name() string { return "mysql" }

// MapType maps a logical type to a MySQL type. BOOLEAN is an alias for
// TINYINT(1), which the catalog reports as an integer.
func (d Dialect) MapType(t config.ColumnType) string {
	if s, ok := d.Overrides.Lookup(t); ok {
		return s
	}
	switch t {
	case config.TypeInteger:
		return "BIGINT"
	case config.TypeNumeric:
		return "DOUBLE"
	case config.TypeBoolean:
		return "BOOLEAN"
	case config.TypeDate:
		return "DATE"
	case config.TypeDateTime:
		return "DATETIME(6)"
	case config.TypeJSON:
		return "JSON"
	default:
		return "TEXT"
	}
}

func (Dialect) QuoteIdent(name string) string { return quoteIdent(name) }
func (Dialect) QuoteTable(fqn string) string  { return quoteFQN(fqn) }
func (Dialect) Placeholder(int) string        { return "?" }

// CreateTable renders CREATE DATABASE IF NOT EXISTS (for qualified names)
// and CREATE TABLE IF NOT EXISTS.
func (d Dialect) CreateTable(t gddl.TableDef) ([]string, error) {
	if err := gddl.Validate(t); err != nil {
		return nil, err
	}
	var stmts []string
	if schema, _ := gddl.SplitFQN(t.FQN); schema != "" {
		stmts = append(stmts, "CREATE DATABASE IF NOT EXISTS "+quoteIdent(schema))
	}
	stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		quoteFQN(t.FQN), gddl.ColumnList(d, t)))
	return stmts, nil
}

// AddColumn renders ALTER TABLE ... ADD COLUMN; duplicate column errors
// (1060) are swallowed by the repository.
func (d Dialect) AddColumn(table string, c gddl.ColumnDef) ([]string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("ddl: empty column name for %s", table)
	}
	return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteFQN(table), gddl.ColumnSQL(d, c))}, nil
}

func (d Dialect) ExistsSQL(table string, cols []string) string {
	return fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIMIT 1", quoteFQN(table), gddl.WhereEquals(d, cols))
}

func quoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

func quoteFQN(fqn string) string {
	schema, table := gddl.SplitFQN(fqn)
	if schema == "" {
		return quoteIdent(table)
	}
	return quoteIdent(schema) + "." + quoteIdent(table)
}
