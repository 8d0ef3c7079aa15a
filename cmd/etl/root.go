package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/etlerr"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/logging"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage"
	_ "github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage/all"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitFatal  = 2
)

// newRepository is a test seam.
var newRepository = storage.New

// options holds the persistent flags shared by every subcommand.
type options struct {
	configPath     string
	mappingPath    string
	input          string
	metricsBackend string
	pushgatewayURL string
	datadogAddr    string
	verbose        bool
}

// execute runs the CLI with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "etl: %v\n", err)
	}
	return exitCode(err)
}

// exitCode maps err to 0 on success, 2 when the catalog was lost and 1 for
// everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case etlerr.IsFatal(err):
		return exitFatal
	default:
		return exitFailed
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "etl",
		Short: "Load JSON document exports into a relational database",
		Long: `etl maps JSON documents grouped by collection onto relational tables.
Tables and columns are created as needed, every value is coerced to its
mapped type, and each document gets an audit record with its status.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "application config file (YAML or JSON)")
	f.StringVar(&opts.mappingPath, "mapping", "", "collection mapping file; overrides mapping_path")
	f.StringVar(&opts.input, "input", "", "input file, directory, URL or - for stdin; overrides input.path")
	f.StringVar(&opts.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway or datadog")
	f.StringVar(&opts.pushgatewayURL, "pushgateway-url", "", "Prometheus Pushgateway URL")
	f.StringVar(&opts.datadogAddr, "datadog-addr", "", "DogStatsD address")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRunCmd(opts),
		newValidateCmd(opts),
		newPlanCmd(opts),
		newScaffoldCmd(opts),
	)
	return root
}

// loadApp reads the app config and applies the environment and then the
// flags on top of it.
func (o *options) loadApp() (config.App, error) {
	app, err := config.LoadApp(o.configPath)
	if err != nil {
		return config.App{}, err
	}
	applyMetricsEnv(&app.Metrics, os.Getenv)
	if o.mappingPath != "" {
		app.MappingPath = o.mappingPath
	}
	if o.input != "" {
		app.Input.Path = o.input
	}
	if o.metricsBackend != "" {
		app.Metrics.Backend = o.metricsBackend
	}
	if o.pushgatewayURL != "" {
		app.Metrics.PushgatewayURL = o.pushgatewayURL
	}
	if o.datadogAddr != "" {
		app.Metrics.DatadogAddr = o.datadogAddr
	}
	if o.verbose {
		app.Logging.Level = "debug"
	}
	return app, nil
}

// validApp is loadApp plus static validation.
func (o *options) validApp() (config.App, error) {
	app, err := o.loadApp()
	if err != nil {
		return config.App{}, err
	}
	if err := config.IssuesError(config.ValidateApp(app)); err != nil {
		return app, &etlerr.ConfigError{Path: configName(o.configPath), Err: err}
	}
	return app, nil
}

func configName(path string) string {
	if path == "" {
		return "<flags>"
	}
	return path
}

// loadMapping reads the mapping named by app. Warnings are logged.
func loadMapping(app config.App, log *zap.Logger) (config.Mapping, error) {
	if app.MappingPath == "" {
		return config.Mapping{}, &etlerr.ConfigError{Path: "mapping_path", Err: errors.New("no mapping file; set --mapping or mapping_path")}
	}
	m, issues, err := config.LoadMapping(app.MappingPath)
	for _, iss := range issues {
		if iss.Severity != config.SeverityError {
			log.Warn("mapping", zap.String("path", iss.Path), zap.String("issue", iss.Message))
		}
	}
	return m, err
}

func newLogger(app config.App) (*zap.Logger, error) {
	log, err := logging.New(app.Logging.Level, app.Logging.Format)
	if err != nil {
		return nil, &etlerr.ConfigError{Path: "logging.level", Err: err}
	}
	return log, nil
}

// openRepository connects to the configured backend. Connection failures are
// fatal for the run.
func openRepository(ctx context.Context, app config.App) (storage.Repository, error) {
	repo, err := newRepository(ctx, storage.FromApp(app))
	if err != nil {
		if storage.IsConnectionError(err) {
			return nil, &etlerr.CatalogUnavailableError{Op: "connect", Err: err}
		}
		return nil, fmt.Errorf("open %s storage: %w", app.Storage.Kind, err)
	}
	return repo, nil
}
