package ddl

import (
	"strings"
	"testing"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	gddl "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"
)

func TestQuote(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Users":     "[dbo].[Users]",
		"dbo.Users": "[dbo].[Users]",
		"s.weird]x": "[s].[weird]]x]",
	}
	for in, want := range tests {
		if got := quoteFQN(in); got != want {
			t.Fatalf("quoteFQN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateTable(t *testing.T) {
	t.Parallel()

	stmts, err := Dialect{}.CreateTable(gddl.TableDef{
		FQN:     "sales.orders",
		Columns: []gddl.ColumnDef{{Name: "id", Type: config.TypeInteger}, {Name: "raw_json", Type: config.TypeJSON}},
	})
	if err != nil {
		t.Fatalf("CreateTable() error: %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("CreateTable() = %d statements, want 2", len(stmts))
	}
	if want := "IF SCHEMA_ID(N'sales') IS NULL EXEC(N'CREATE SCHEMA [sales]')"; stmts[0] != want {
		t.Fatalf("schema stmt = %q, want %q", stmts[0], want)
	}
	for _, frag := range []string{
		"IF OBJECT_ID(N'[sales].[orders]', N'U') IS NULL",
		"CREATE TABLE [sales].[orders]",
		"[id] BIGINT NOT NULL",
		"[raw_json] NVARCHAR(MAX) NOT NULL",
	} {
		if !strings.Contains(stmts[1], frag) {
			t.Fatalf("create stmt missing %q:\n%s", frag, stmts[1])
		}
	}
}

func TestAddColumnAndExists(t *testing.T) {
	t.Parallel()

	d := Dialect{}
	stmts, err := d.AddColumn("o'brien", gddl.ColumnDef{Name: "flag", Type: config.TypeBoolean, Nullable: true})
	if err != nil {
		t.Fatalf("AddColumn() error: %v", err)
	}
	want := "IF COL_LENGTH(N'[dbo].[o''brien]', N'flag') IS NULL ALTER TABLE [dbo].[o'brien] ADD [flag] BIT"
	if stmts[0] != want {
		t.Fatalf("AddColumn() = %q, want %q", stmts[0], want)
	}
	if got := d.ExistsSQL("t", []string{"a", "b"}); got != "SELECT TOP 1 1 FROM [dbo].[t] WHERE [a] = @p1 AND [b] = @p2" {
		t.Fatalf("ExistsSQL() = %q", got)
	}
}
