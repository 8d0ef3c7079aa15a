package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/etlerr"
)

// Environment overrides applied by LoadApp.
const (
	EnvDSN         = "ETL_DSN"
	EnvStorageKind = "ETL_STORAGE_KIND"
	EnvLogLevel    = "ETL_LOG_LEVEL"
)

// decodeFile decodes path into v as YAML (.yaml, .yml) or JSON.
func decodeFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, v)
	default:
		return json.Unmarshal(b, v)
	}
}

// LoadApp reads the application config at path, applies environment
// overrides and defaults. An empty path yields defaults plus overrides.
func LoadApp(path string) (App, error) {
	var a App
	if path != "" {
		if err := decodeFile(path, &a); err != nil {
			return App{}, &etlerr.ConfigError{Path: path, Err: err}
		}
	}
	applyEnv(&a, os.Getenv)
	a.ApplyDefaults()
	return a, nil
}

func applyEnv(a *App, getenv func(string) string) {
	if v := getenv(EnvDSN); v != "" {
		a.Storage.DSN = v
	}
	if v := getenv(EnvStorageKind); v != "" {
		a.Storage.Kind = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		a.Logging.Level = v
	}
}

// LoadMapping reads and validates the collection mapping at path.
//
// The returned issues include warnings even when err is nil. err is a
// *etlerr.ConfigError when the file cannot be decoded or any issue has
// error severity.
func LoadMapping(path string) (Mapping, []Issue, error) {
	var m Mapping
	if err := decodeFile(path, &m); err != nil {
		return Mapping{}, nil, &etlerr.ConfigError{Path: path, Err: err}
	}
	m.normalize()

	issues := ValidateMapping(m)
	if err := IssuesError(issues); err != nil {
		return m, issues, &etlerr.ConfigError{Path: path, Err: err}
	}
	return m, issues, nil
}

// ParseMapping decodes a mapping from memory. format is "json" or "yaml".
func ParseMapping(b []byte, format string) (Mapping, []Issue, error) {
	var m Mapping
	var err error
	if format == "yaml" {
		err = yaml.Unmarshal(b, &m)
	} else {
		err = json.Unmarshal(b, &m)
	}
	if err != nil {
		return Mapping{}, nil, fmt.Errorf("config: decode mapping: %w", err)
	}
	m.normalize()
	issues := ValidateMapping(m)
	return m, issues, IssuesError(issues)
}

// IssuesError joins error-severity issues, or returns nil when there are none.
func IssuesError(issues []Issue) error {
	var errs []error
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
		}
	}
	return errors.Join(errs...)
}
