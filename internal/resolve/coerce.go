package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/config"
)

var (
	truthy = map[string]struct{}{"true": {}, "t": {}, "yes": {}, "y": {}, "1": {}}
	falsy  = map[string]struct{}{"false": {}, "f": {}, "no": {}, "n": {}, "0": {}}
)

// Coerce converts a resolved value to the Go type bound for t:
//
//	text     -> string (objects and arrays as compact JSON)
//	integer  -> int64 (integral floats accepted)
//	numeric  -> exact decimal string ("12.50", exponents expanded)
//	boolean  -> bool (true/t/yes/y/1 and false/f/no/n/0)
//	date     -> canonical date string
//	datetime -> canonical datetime string
//	json     -> JSON text
//
// A nil value yields nil, nil.
func Coerce(t config.ColumnType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case config.TypeText:
		return toText(v)
	case config.TypeInteger:
		return toInt(v)
	case config.TypeNumeric:
		return toDecimal(v)
	case config.TypeBoolean:
		return toBool(v)
	case config.TypeDate, config.TypeDateTime:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("coerce %s: expected normalized string, got %T", t, v)
		}
		return s, nil
	case config.TypeJSON:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("coerce json: %w", err)
		}
		return string(b), nil
	default:
		return nil, fmt.Errorf("coerce: unsupported type %q", t)
	}
}

func toText(v any) (any, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("coerce text: %w", err)
		}
		return string(b), nil
	default:
		return fmt.Sprint(x), nil
	}
}

func toInt(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		return intFromString(x.String())
	case string:
		return intFromString(strings.TrimSpace(x))
	case float64:
		return intFromFloat(x)
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	default:
		return nil, fmt.Errorf("coerce integer: unsupported %T", v)
	}
}

func intFromString(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("coerce integer: %q is not a number", s)
	}
	return intFromFloat(f)
}

func intFromFloat(f float64) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) || math.Abs(f) > math.MaxInt64 {
		return nil, fmt.Errorf("coerce integer: %v is not integral", f)
	}
	return int64(f), nil
}

// maxDecimalScale bounds the digits kept when an exponent is expanded.
const maxDecimalScale = 64

// toDecimal keeps numeric values as exact decimal text so NUMERIC columns
// receive every digit. Exponents are expanded because not every backend
// casts them from text.
func toDecimal(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		return decimalFromString(x.String())
	case string:
		return decimalFromString(strings.TrimSpace(x))
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, fmt.Errorf("coerce numeric: %v is not finite", x)
		}
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	default:
		return nil, fmt.Errorf("coerce numeric: unsupported %T", v)
	}
}

func decimalFromString(s string) (any, error) {
	f, err := strconv.ParseFloat(s, 64)
	switch {
	case errors.Is(err, strconv.ErrRange):
		// beyond float64 but still a valid decimal
	case err != nil:
		return nil, fmt.Errorf("coerce numeric: %q is not a number", s)
	case math.IsNaN(f) || math.IsInf(f, 0) || strings.ContainsAny(s, "xX"):
		return nil, fmt.Errorf("coerce numeric: %q is not a finite decimal", s)
	}
	if !strings.ContainsAny(s, "eE") {
		return strings.TrimPrefix(s, "+"), nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("coerce numeric: %q is not a number", s)
	}
	scale := 0
	for scaled := new(big.Rat).Set(r); !scaled.IsInt(); scale++ {
		if scale == maxDecimalScale {
			break
		}
		scaled.Mul(scaled, big.NewRat(10, 1))
	}
	return r.FloatString(scale), nil
}

func toBool(v any) (any, error) {
	var s string
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		s = x
	case json.Number:
		s = x.String()
	default:
		return nil, fmt.Errorf("coerce boolean: unsupported %T", v)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := truthy[s]; ok {
		return true, nil
	}
	if _, ok := falsy[s]; ok {
		return false, nil
	}
	return nil, fmt.Errorf("coerce boolean: %q is not a boolean", s)
}
