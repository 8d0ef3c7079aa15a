package ddl

import (
	"fmt"
	"strings"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
)

// Dialect renders DDL and the few DML statements the engine needs for one
// SQL backend.
type Dialect interface {
	Name() string
	// MapType returns the SQL type for a logical column type.
	MapType(t config.ColumnType) string
	QuoteIdent(name string) string
	// QuoteTable quotes a dotted table name.
	QuoteTable(fqn string) string
	// Placeholder returns the bind marker for the n-th (1-based) parameter.
	Placeholder(n int) string

	// CreateTable renders the statements that create t when absent.
	CreateTable(t TableDef) ([]string, error)
	// AddColumn renders the statements that add c to table when absent.
	AddColumn(table string, c ColumnDef) ([]string, error)
	// ExistsSQL selects at most one row matching every column in cols.
	ExistsSQL(table string, cols []string) string
}

// Validate checks the invariants every dialect relies on.
func Validate(t TableDef) error {
	if strings.TrimSpace(t.FQN) == "" {
		return fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("ddl: table %s needs at least one column", t.FQN)
	}
	for _, c := range t.Columns {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("ddl: column with empty name in table %s", t.FQN)
		}
	}
	return nil
}

// ColumnList renders "<name> <type> [NOT NULL]" entries for t.
func ColumnList(d Dialect, t TableDef) string {
	parts := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		parts = append(parts, ColumnSQL(d, c))
	}
	return strings.Join(parts, ",\n  ")
}

// ColumnSQL renders one column definition.
func ColumnSQL(d Dialect, c ColumnDef) string {
	s := d.QuoteIdent(c.Name) + " " + d.MapType(c.Type)
	if !c.Nullable {
		s += " NOT NULL"
	}
	return s
}

// InsertSQL renders a parameterized INSERT for cols.
func InsertSQL(d Dialect, table string, cols []string) string {
	names := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		names[i] = d.QuoteIdent(c)
		marks[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteTable(table), strings.Join(names, ", "), strings.Join(marks, ", "))
}

// WhereEquals renders "a = $1 AND b = $2" for cols.
func WhereEquals(d Dialect, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprintf("%s = %s", d.QuoteIdent(c), d.Placeholder(i+1))
	}
	return strings.Join(parts, " AND ")
}

// TypeOverrides replaces the SQL type a dialect picks for a logical type.
type TypeOverrides map[config.ColumnType]string

// ParseTypeOverrides converts config keys (type names or aliases) into
// TypeOverrides.
func ParseTypeOverrides(in map[string]string) TypeOverrides {
	if len(in) == 0 {
		return nil
	}
	out := make(TypeOverrides, len(in))
	for k, v := range in {
		out[config.NormalizeType(k)] = v
	}
	return out
}

// Lookup returns the override for t, if any.
func (o TypeOverrides) Lookup(t config.ColumnType) (string, bool) {
	s, ok := o[t]
	return s, ok && s != ""
}
