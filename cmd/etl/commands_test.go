package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
)

func TestValidate(t *testing.T) {
	valid := newFixture(t, mappingYAML)
	invalid := newFixture(t, strings.Replace(mappingYAML, "type: integer", "type: money", 1))

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{"valid", []string{"validate", "--config", valid.config, "--mapping", valid.mapping}, exitOK, "Configuration is valid"},
		{"bad type", []string{"validate", "--config", invalid.config, "--mapping", invalid.mapping}, exitFailed, "columns[0].type"},
		{"no mapping", []string{"validate", "--config", valid.config}, exitFailed, "mapping_path"},
		{"bad backend", []string{"validate", "--config", valid.config, "--mapping", valid.mapping, "--metrics-backend", "statsd"}, exitFailed, "metrics.backend"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, stdout, stderr := run(t, tt.args)
			if code != tt.wantCode {
				t.Fatalf("exit = %d, want %d; stderr=%s", code, tt.wantCode, stderr)
			}
			if !strings.Contains(stdout, tt.wantOut) {
				t.Fatalf("stdout = %q, want it to contain %q", stdout, tt.wantOut)
			}
		})
	}
}

func TestPlan(t *testing.T) {
	f := newFixture(t, mappingYAML)

	code, stdout, stderr := run(t, f.args("plan"))
	if code != exitOK {
		t.Fatalf("exit = %d, want %d; stderr=%s", code, exitOK, stderr)
	}
	for _, want := range []string{"customers -> customers", "create_table customers", "CREATE TABLE IF NOT EXISTS"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("plan output missing %q:\n%s", want, stdout)
		}
	}
	if got := countRows(t, f.dbPath, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'customers'"); got != 0 {
		t.Fatalf("plan created the table")
	}

	if code, _, stderr := run(t, f.args("run")); code != exitOK {
		t.Fatalf("run exit = %d; stderr=%s", code, stderr)
	}
	_, stdout, _ = run(t, f.args("plan"))
	if !strings.Contains(stdout, "up to date") {
		t.Fatalf("plan after run:\n%s", stdout)
	}
}

func TestScaffold(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mappingYAML)
	tests := []struct {
		format string
	}{
		{"yaml"},
		{"json"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()
			out := filepath.Join(t.TempDir(), "mapping."+tt.format)
			code, _, stderr := run(t, []string{"scaffold", "--input", f.input, "--format", tt.format, "-o", out})
			if code != exitOK {
				t.Fatalf("exit = %d, want %d; stderr=%s", code, exitOK, stderr)
			}
			b, err := os.ReadFile(out)
			if err != nil {
				t.Fatalf("read scaffold output: %v", err)
			}
			m, _, err := config.ParseMapping(b, tt.format)
			if err != nil {
				t.Fatalf("ParseMapping() error: %v\n%s", err, b)
			}
			cm, ok := m.Lookup("customers")
			if !ok {
				t.Fatalf("customers not scaffolded:\n%s", b)
			}
			if cm.ObjectID() != "id" {
				t.Fatalf("ObjectID() = %q, want %q", cm.ObjectID(), "id")
			}
			if _, ok := m.Lookup("orders"); !ok {
				t.Fatalf("orders not scaffolded:\n%s", b)
			}
		})
	}
}

func TestScaffold_UnknownFormat(t *testing.T) {
	t.Parallel()

	f := newFixture(t, mappingYAML)
	code, _, stderr := run(t, []string{"scaffold", "--input", f.input, "--format", "toml"})
	if code != exitFailed {
		t.Fatalf("exit = %d, want %d", code, exitFailed)
	}
	if !strings.Contains(stderr, "toml") {
		t.Fatalf("stderr = %q", stderr)
	}
}
