// Package ddl renders Postgres DDL for the generic ddl model.
package ddl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	gddl "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"
)

// Dialect is the Postgres dialect.
type Dialect struct {
	Overrides gddl.TypeOverrides
}

func (Dialect) Name() string { return "postgres" }

// MapType maps a logical type to a Postgres type.
//
//	text -> TEXT, integer -> BIGINT, numeric -> NUMERIC, boolean -> BOOLEAN,
//	date -> DATE, datetime -> TIMESTAMPTZ, json -> JSONB
func (d Dialect) MapType(t config.ColumnType) string {
	if s, ok := d.Overrides.Lookup(t); ok {
		return s
	}
	switch t {
	case config.TypeInteger:
		return "BIGINT"
	case config.TypeNumeric:
		return "NUMERIC"
	case config.TypeBoolean:
		return "BOOLEAN"
	case config.TypeDate:
		return "DATE"
	case config.TypeDateTime:
		return "TIMESTAMPTZ"
	case config.TypeJSON:
		return "JSONB"
	default:
		return "TEXT"
	}
}

func (Dialect) QuoteIdent(name string) string { return quoteIdent(name) }
func (Dialect) QuoteTable(fqn string) string  { return quoteFQN(fqn) }
func (Dialect) Placeholder(n int) string      { return "$" + strconv.Itoa(n) }

// CreateTable renders CREATE SCHEMA IF NOT EXISTS (for qualified names) and
// CREATE TABLE IF NOT EXISTS.
func (d Dialect) CreateTable(t gddl.TableDef) ([]string, error) {
	if err := gddl.Validate(t); err != nil {
		return nil, err
	}
	var stmts []string
	if schema, _ := gddl.SplitFQN(t.FQN); schema != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(schema))
	}
	stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		quoteFQN(t.FQN), gddl.ColumnList(d, t)))
	return stmts, nil
}

// AddColumn renders ALTER TABLE ... ADD COLUMN IF NOT EXISTS.
func (d Dialect) AddColumn(table string, c gddl.ColumnDef) ([]string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("ddl: empty column name for %s", table)
	}
	return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s",
		quoteFQN(table), gddl.ColumnSQL(d, c))}, nil
}

func (d Dialect) ExistsSQL(table string, cols []string) string {
	return fmt.Sprintf("SELECT 1 FROM %s WHERE %s LIMIT 1", quoteFQN(table), gddl.WhereEquals(d, cols))
}

// quoteIdent quotes a single identifier segment, doubling embedded quotes.
func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// quoteFQN quotes each dotted segment: public.users -> "public"."users".
func quoteFQN(fqn string) string {
	schema, table := gddl.SplitFQN(fqn)
	if schema == "" {
		return quoteIdent(table)
	}
	return quoteIdent(schema) + "." + quoteIdent(table)
}
