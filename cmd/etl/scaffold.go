package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/scaffold"
)

func newScaffoldCmd(opts *options) *cobra.Command {
	var (
		format  string
		schema  string
		flatten bool
		output  string
	)
	cmd := &cobra.Command{
		Use:   "scaffold",
		Short: "Infer a starting mapping from sample documents",
		Long: `scaffold reads the input documents and writes a mapping with one column
per attribute, a guessed type for each and the detected date layouts. Review
it before the first run; key_attributes defaults to the object id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.loadApp()
			if err != nil {
				return err
			}
			log, err := newLogger(app)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			batch, err := loadBatch(cmd.Context(), app, log)
			if err != nil {
				return err
			}
			m := scaffold.Infer(batch.Documents, scaffold.Options{Schema: schema, Flatten: flatten})
			b, err := scaffold.Marshal(m, format)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			if err := os.WriteFile(output, b, 0o644); err != nil {
				return fmt.Errorf("write mapping: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d collection(s) to %s\n", len(m.Collections), output)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&format, "format", "yaml", "output format: yaml or json")
	f.StringVar(&schema, "schema", "", "schema qualifying the destination tables")
	f.BoolVar(&flatten, "flatten", false, "map nested object fields to dotted attributes instead of one JSON column")
	f.StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
