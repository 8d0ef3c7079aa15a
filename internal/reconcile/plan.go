// Package reconcile compares the tables a mapping needs against the live
// catalog and applies additive DDL: it creates missing tables and adds
// missing columns, and never drops or retypes anything.
//
// Planning is pure (PlanFor); Reconciler.Apply is the only step with side
// effects.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage"
)

// ActionKind names a DDL action.
type ActionKind string

const (
	CreateTable ActionKind = "create_table"
	AddColumn   ActionKind = "add_column"
)

// Action is one additive DDL step.
type Action struct {
	Kind  ActionKind
	Table string
	// Column is set for AddColumn.
	Column ddl.ColumnDef
	// Columns is set for CreateTable.
	Columns []ddl.ColumnDef
}

func (a Action) key() string {
	if a.Kind == AddColumn {
		return string(a.Kind) + "\x00" + a.Table + "\x00" + strings.ToLower(a.Column.Name)
	}
	return string(a.Kind) + "\x00" + a.Table
}

func (a Action) String() string {
	if a.Kind == AddColumn {
		return fmt.Sprintf("%s %s.%s %s", a.Kind, a.Table, a.Column.Name, a.Column.Type)
	}
	names := make([]string, len(a.Columns))
	for i, c := range a.Columns {
		names[i] = c.Name + " " + string(c.Type)
	}
	return fmt.Sprintf("%s %s (%s)", a.Kind, a.Table, strings.Join(names, ", "))
}

// Conflict is a mapped column whose existing catalog type cannot hold the
// mapped type.
type Conflict struct {
	Table  string
	Column string
	Want   config.ColumnType
	Have   string
}

func (c Conflict) Error() string {
	return fmt.Sprintf("column %s.%s is %s, mapping wants %s", c.Table, c.Column, c.Have, c.Want)
}

// Plan is the reconciliation result for one destination table.
type Plan struct {
	Table     string
	Actions   []Action
	Conflicts []Conflict
	// Unreachable marks a predefined table that does not exist. Predefined
	// tables are never created automatically.
	Unreachable bool
}

// Empty reports whether p needs no DDL and has nothing to report.
func (p Plan) Empty() bool {
	return len(p.Actions) == 0 && len(p.Conflicts) == 0 && !p.Unreachable
}

// TableColumns returns the full column list of a table created for cm:
// mapped columns (nullable) followed by the raw JSON column and the fixed
// audit columns.
func TableColumns(cm config.CollectionMapping) []ddl.ColumnDef {
	cols := make([]ddl.ColumnDef, 0, len(cm.Columns)+4)
	for _, c := range cm.Columns {
		cols = append(cols, ddl.ColumnDef{Name: c.DestinationColumn, Type: c.Type, Nullable: true})
	}
	return append(cols, fixedColumns(cm, false)...)
}

// fixedColumns are NOT NULL on creation. Added later to a table with rows
// they must be nullable.
func fixedColumns(cm config.CollectionMapping, nullable bool) []ddl.ColumnDef {
	return []ddl.ColumnDef{
		{Name: cm.RawColumn(), Type: config.TypeJSON, Nullable: nullable},
		{Name: config.ColumnIngestedAt, Type: config.TypeDateTime, Nullable: nullable},
		{Name: config.ColumnSourceCollection, Type: config.TypeText, Nullable: nullable},
		{Name: config.ColumnStatus, Type: config.TypeText, Nullable: nullable},
	}
}

// PlanFor computes the actions that make snap satisfy cm. Tables listed in
// predefined are never created and are exempt from fixed-column
// enforcement; mapped columns missing on them are still added.
func PlanFor(cm config.CollectionMapping, snap storage.Catalog, predefined config.TableSet) Plan {
	table := cm.DestinationTable
	plan := Plan{Table: table}
	isPredefined := predefined.Has(table)

	existing, ok := snap.Lookup(table)
	if !ok {
		if isPredefined {
			plan.Unreachable = true
			return plan
		}
		plan.Actions = append(plan.Actions, Action{Kind: CreateTable, Table: table, Columns: TableColumns(cm)})
		return plan
	}

	check := func(c ddl.ColumnDef) {
		have, ok := existing.Column(c.Name)
		if !ok {
			plan.Actions = append(plan.Actions, Action{Kind: AddColumn, Table: table, Column: c})
			return
		}
		if !ddl.Compatible(c.Type, have) {
			plan.Conflicts = append(plan.Conflicts, Conflict{Table: table, Column: c.Name, Want: c.Type, Have: have})
		}
	}

	for _, c := range cm.Columns {
		check(ddl.ColumnDef{Name: c.DestinationColumn, Type: c.Type, Nullable: true})
	}
	if !isPredefined {
		for _, c := range fixedColumns(cm, true) {
			check(c)
		}
	}
	return plan
}

func tableDef(a Action) ddl.TableDef {
	return ddl.TableDef{FQN: a.Table, Columns: a.Columns}
}
