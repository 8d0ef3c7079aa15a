package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/audit"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/ingest"
)

func newRunCmd(opts *options) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest the input documents and write audit and report tables",
		Long: `run loads the mapping, decodes the input, reconciles every destination
table, inserts one row per mapped document and records an audit entry for
each. The run summary is printed when it ends.

Exit status is 0 on success, 1 for config or input errors and 2 when the
database connection was lost mid-run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			start := time.Now()

			app, err := opts.validApp()
			if err != nil {
				return err
			}
			log, err := newLogger(app)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			flush := setupMetrics(app.Metrics, app.Job, log)
			defer flush()

			mapping, err := loadMapping(app, log)
			if err != nil {
				return err
			}
			predefined, err := config.LoadPredefinedTables(app.Runtime.SchemaPath)
			if err != nil {
				return err
			}
			batch, err := loadBatch(ctx, app, log)
			if err != nil {
				return err
			}

			repo, err := openRepository(ctx, app)
			if err != nil {
				return err
			}
			defer repo.Close()

			o := ingest.New(repo, mapping, audit.NewTableSink(repo, app.Audit.Schema), ingest.Options{
				Job:                   app.Job,
				RunID:                 runID,
				RuntimeFormats:        app.Runtime.DateFormats,
				Predefined:            predefined,
				SkipAbsentCollections: app.Audit.SkipAbsentCollections,
				Logger:                log,
			})
			res, runErr := o.Run(ctx, batch)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s\n", res.RunID)
			fmt.Fprintln(out, audit.Summary(res.Report))
			log.Debug("completed", zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
			return runErr
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier for logs (default: random UUID)")
	return cmd
}
