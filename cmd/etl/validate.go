package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/etlerr"
)

var errInvalid = errors.New("configuration is invalid")

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the app config and the mapping without touching the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			app, err := opts.loadApp()
			if err != nil {
				return err
			}

			issues := config.ValidateApp(app)
			if app.MappingPath == "" {
				issues = append(issues, config.Issue{Severity: config.SeverityError, Path: "mapping_path", Message: "no mapping file; set --mapping or mapping_path"})
			} else {
				_, mappingIssues, err := config.LoadMapping(app.MappingPath)
				if err != nil && len(mappingIssues) == 0 {
					return err
				}
				issues = append(issues, prefixIssues(app.MappingPath, mappingIssues)...)
			}
			if _, err := config.LoadPredefinedTables(app.Runtime.SchemaPath); err != nil {
				issues = append(issues, config.Issue{Severity: config.SeverityError, Path: "runtime.schema_path", Message: err.Error()})
			}

			printIssues(out, issues)
			if config.IssuesError(issues) != nil {
				return &etlerr.ConfigError{Path: configName(opts.configPath), Err: errInvalid}
			}
			fmt.Fprintln(out, "Configuration is valid")
			return nil
		},
	}
}

func prefixIssues(file string, issues []config.Issue) []config.Issue {
	out := make([]config.Issue, len(issues))
	for i, iss := range issues {
		iss.Path = file + ": " + iss.Path
		out[i] = iss
	}
	return out
}

func printIssues(w io.Writer, issues []config.Issue) {
	for _, iss := range issues {
		fmt.Fprintf(w, "%-7s %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
}
