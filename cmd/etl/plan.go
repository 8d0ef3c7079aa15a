package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ddl"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/reconcile"
)

func newPlanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the DDL a run would apply, without applying it",
		Long: `plan snapshots every destination table named by the mapping and prints
the additive changes a run would make: tables to create, columns to add,
type conflicts and predefined tables that do not exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := opts.validApp()
			if err != nil {
				return err
			}
			log, err := newLogger(app)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			mapping, err := loadMapping(app, log)
			if err != nil {
				return err
			}
			predefined, err := config.LoadPredefinedTables(app.Runtime.SchemaPath)
			if err != nil {
				return err
			}
			repo, err := openRepository(ctx, app)
			if err != nil {
				return err
			}
			defer repo.Close()

			rec := reconcile.New(repo, reconcile.Options{Predefined: predefined, Job: app.Job, Logger: log})
			out := cmd.OutOrStdout()
			for _, cm := range mapping.Collections {
				plan, _, err := rec.Plan(ctx, cm)
				if err != nil {
					return err
				}
				if err := printPlan(out, cm.SourceCollection, plan, repo.Dialect()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func printPlan(w io.Writer, collection string, p reconcile.Plan, d ddl.Dialect) error {
	fmt.Fprintf(w, "%s -> %s\n", collection, p.Table)
	if p.Empty() {
		fmt.Fprintln(w, "  up to date")
		return nil
	}
	if p.Unreachable {
		fmt.Fprintln(w, "  unreachable: predefined table does not exist")
	}
	for _, c := range p.Conflicts {
		fmt.Fprintf(w, "  conflict: %s\n", c.Error())
	}
	for _, a := range p.Actions {
		fmt.Fprintf(w, "  %s\n", a)
		var (
			stmts []string
			err   error
		)
		if a.Kind == reconcile.CreateTable {
			stmts, err = d.CreateTable(ddl.TableDef{FQN: a.Table, Columns: a.Columns})
		} else {
			stmts, err = d.AddColumn(a.Table, a.Column)
		}
		if err != nil {
			return fmt.Errorf("render %s: %w", a.Kind, err)
		}
		for _, s := range stmts {
			fmt.Fprintf(w, "    %s;\n", s)
		}
	}
	return nil
}
