// Package ddl renders SQL Server DDL for the generic ddl model.
//
// SQL Server has no IF NOT EXISTS for tables or columns, so statements are
// guarded with OBJECT_ID, COL_LENGTH and SCHEMA_ID checks.
package ddl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	gddl "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"
)

// DefaultSchema qualifies bare table names.
const DefaultSchema = "dbo"

// Dialect is the SQL Server dialect.
type Dialect struct {
	Overrides gddl.TypeOverrides
}

func (Dialect) Name() string { return "mssql" }

// MapType maps a logical type into a SQL Server column type. JSON is stored
// as NVARCHAR(MAX).
func (d Dialect) MapType(t config.ColumnType) string {
	if s, ok := d.Overrides.Lookup(t); ok {
		return s
	}
	switch t {
	case config.TypeInteger:
		return "BIGINT"
	case config.TypeNumeric:
		return "DECIMAL(38, 10)"
	case config.TypeBoolean:
		return "BIT"
	case config.TypeDate:
		return "DATE"
	case config.TypeDateTime:
		return "DATETIME2"
	default:
		return "NVARCHAR(MAX)"
	}
}

func (Dialect) QuoteIdent(name string) string { return quoteIdent(name) }
func (Dialect) QuoteTable(fqn string) string  { return quoteFQN(fqn) }
func (Dialect) Placeholder(n int) string      { return "@p" + strconv.Itoa(n) }

// CreateTable renders a guarded CREATE SCHEMA and CREATE TABLE.
func (d Dialect) CreateTable(t gddl.TableDef) ([]string, error) {
	if err := gddl.Validate(t); err != nil {
		return nil, err
	}
	schema, _ := split(t.FQN)
	fqn := quoteFQN(t.FQN)
	return []string{
		fmt.Sprintf("IF SCHEMA_ID(N'%s') IS NULL EXEC(N'CREATE SCHEMA %s')",
			literal(schema), literal(quoteIdent(schema))),
		fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  CREATE TABLE %s (\n  %s\n  );\nEND;",
			literal(fqn), fqn, gddl.ColumnList(d, t)),
	}, nil
}

// AddColumn renders a COL_LENGTH-guarded ALTER TABLE ... ADD.
func (d Dialect) AddColumn(table string, c gddl.ColumnDef) ([]string, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, fmt.Errorf("ddl: empty column name for %s", table)
	}
	fqn := quoteFQN(table)
	return []string{fmt.Sprintf("IF COL_LENGTH(N'%s', N'%s') IS NULL ALTER TABLE %s ADD %s",
		literal(fqn), literal(c.Name), fqn, gddl.ColumnSQL(d, c))}, nil
}

func (d Dialect) ExistsSQL(table string, cols []string) string {
	return fmt.Sprintf("SELECT TOP 1 1 FROM %s WHERE %s", quoteFQN(table), gddl.WhereEquals(d, cols))
}

func split(fqn string) (schema, table string) {
	schema, table = gddl.SplitFQN(fqn)
	if schema == "" {
		schema = DefaultSchema
	}
	return schema, table
}

// quoteIdent quotes with brackets, escaping closing brackets: weird]id ->
// [weird]]id].
func quoteIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

// quoteFQN quotes schema and table, defaulting the schema to dbo.
func quoteFQN(fqn string) string {
	schema, table := split(fqn)
	return quoteIdent(schema) + "." + quoteIdent(table)
}

// literal escapes s for use inside N'...'.
func literal(s string) string { return strings.ReplaceAll(s, "'", "''") }
