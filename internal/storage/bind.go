package storage

import (
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/dates"
)

// BindTemporal turns canonical date and datetime strings into time.Time for
// drivers with native temporal types. Other values are returned unchanged,
// as is any string that is not canonical.
func BindTemporal(t config.ColumnType, v any) any {
	s, ok := v.(string)
	if !ok || !t.IsTemporal() {
		return v
	}
	kind := dates.KindDate
	if t == config.TypeDateTime {
		kind = dates.KindDateTime
	}
	ts, err := dates.Parse(s, kind)
	if err != nil {
		return v
	}
	return ts
}

// BindRow applies bind to every value of r and returns the argument list.
// A nil bind returns the values as they are.
func BindRow(r Row, bind func(config.ColumnType, any) any) []any {
	args := make([]any, len(r.Values))
	for i, v := range r.Values {
		if bind != nil && v != nil && i < len(r.Types) {
			v = bind(r.Types[i], v)
		}
		args[i] = v
	}
	return args
}
