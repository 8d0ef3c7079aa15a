package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/etlerr"
)

var createTableRe = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?([^\s(]+)`)

// defaultSchema qualifies bare table names for comparison only.
const defaultSchema = "public"

// TableSet is a set of normalized table names.
type TableSet map[string]struct{}

// Has reports whether name (in any quoting or case) is in the set.
func (s TableSet) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s[NormalizeTableName(name)]
	return ok
}

// NormalizeTableName lowercases, unquotes and schema-qualifies a table name.
func NormalizeTableName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer(`"`, "", "`", "", "[", "", "]", "").Replace(name)
	name = strings.ToLower(name)
	if !strings.Contains(name, ".") {
		name = defaultSchema + "." + name
	}
	return name
}

// LoadPredefinedTables reads the SQL file at path and returns the names of
// the tables it creates. An empty path yields an empty set.
func LoadPredefinedTables(path string) (TableSet, error) {
	set := TableSet{}
	if path == "" {
		return set, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &etlerr.ConfigError{Path: path, Err: err}
	}
	return ParsePredefinedTables(string(b)), nil
}

// ParsePredefinedTables extracts CREATE TABLE targets from SQL text.
func ParsePredefinedTables(sql string) TableSet {
	set := TableSet{}
	for _, m := range createTableRe.FindAllStringSubmatch(sql, -1) {
		set[NormalizeTableName(m[1])] = struct{}{}
	}
	return set
}
