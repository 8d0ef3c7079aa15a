package ddl

import (
	"strings"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
)

// Family groups SQL types that hold the same kind of value across dialects.
type Family string

const (
	FamilyText     Family = "text"
	FamilyInteger  Family = "integer"
	FamilyNumeric  Family = "numeric"
	FamilyBoolean  Family = "boolean"
	FamilyDate     Family = "date"
	FamilyDateTime Family = "datetime"
	FamilyJSON     Family = "json"
	FamilyUnknown  Family = "unknown"
)

// FamilyOf classifies a catalog data type such as "timestamp with time zone",
// "NVARCHAR(MAX)" or "bigint".
func FamilyOf(sqlType string) Family {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch {
	case t == "":
		return FamilyUnknown
	case strings.Contains(t, "json"):
		return FamilyJSON
	case strings.HasPrefix(t, "timestamp"), strings.HasPrefix(t, "datetime"), t == "smalldatetime":
		return FamilyDateTime
	case t == "date":
		return FamilyDate
	case t == "bool", t == "boolean", t == "bit":
		return FamilyBoolean
	case strings.Contains(t, "int"):
		return FamilyInteger
	case strings.Contains(t, "char"), strings.Contains(t, "text"), strings.Contains(t, "clob"), t == "uuid", t == "uniqueidentifier":
		return FamilyText
	case t == "numeric", t == "decimal", t == "real", t == "money",
		strings.HasPrefix(t, "float"), strings.HasPrefix(t, "double"):
		return FamilyNumeric
	default:
		return FamilyUnknown
	}
}

// FamilyFor returns the family a logical column type renders into.
func FamilyFor(t config.ColumnType) Family {
	switch t {
	case config.TypeText:
		return FamilyText
	case config.TypeInteger:
		return FamilyInteger
	case config.TypeNumeric:
		return FamilyNumeric
	case config.TypeBoolean:
		return FamilyBoolean
	case config.TypeDate:
		return FamilyDate
	case config.TypeDateTime:
		return FamilyDateTime
	case config.TypeJSON:
		return FamilyJSON
	}
	return FamilyUnknown
}

// widening lists the existing column families a logical type can be stored
// in without loss besides its own.
var widening = map[Family][]Family{
	FamilyInteger: {FamilyNumeric},
	FamilyBoolean: {FamilyInteger},
	FamilyDate:    {FamilyDateTime},
	FamilyJSON:    {FamilyText},
}

// Compatible reports whether values of logical type want can be written to an
// existing column whose catalog type is have. Unknown catalog types are
// accepted since they cannot be judged.
func Compatible(want config.ColumnType, have string) bool {
	hf := FamilyOf(have)
	wf := FamilyFor(want)
	if hf == FamilyUnknown || hf == wf {
		return true
	}
	for _, f := range widening[wf] {
		if f == hf {
			return true
		}
	}
	return false
}
