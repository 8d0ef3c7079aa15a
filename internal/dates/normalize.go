// Package dates normalizes heterogeneous date and datetime representations
// into one canonical string form.
package dates

import (
	"errors"
	"strings"
	"time"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/etlerr"
)

// Kind selects the canonical output form.
type Kind int

const (
	KindDate Kind = iota
	KindDateTime
)

func (k Kind) String() string {
	if k == KindDate {
		return "date"
	}
	return "datetime"
}

const (
	// DateLayout is the canonical date form.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the canonical datetime form, always rendered in UTC.
	DateTimeLayout = time.RFC3339Nano
)

// ErrUnparseable is wrapped by every ParseError returned from Normalize.
var ErrUnparseable = errors.New("unparseable date value")

// Canonical returns the layout Normalize emits for kind.
func Canonical(kind Kind) string {
	if kind == KindDate {
		return DateLayout
	}
	return DateTimeLayout
}

// Normalize parses raw with the first matching candidate format and renders
// it canonically. Inputs that carry no offset are taken as UTC. A datetime
// matched for a date target keeps its own calendar date.
func Normalize(raw any, formats []string, kind Kind) (string, error) {
	var t time.Time
	switch v := raw.(type) {
	case time.Time:
		t = v
	case string:
		s := strings.TrimSpace(v)
		parsed, ok := parse(s, formats)
		if !ok {
			return "", unparseable(raw, formats)
		}
		t = parsed
	default:
		return "", unparseable(raw, formats)
	}
	return Format(t, kind), nil
}

// Format renders t canonically for kind.
func Format(t time.Time, kind Kind) string {
	if kind == KindDate {
		return t.Format(DateLayout)
	}
	return t.UTC().Format(DateTimeLayout)
}

// Parse reads a canonical value back into a time.Time.
func Parse(canonical string, kind Kind) (time.Time, error) {
	return time.Parse(Canonical(kind), canonical)
}

func parse(s string, formats []string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, f := range formats {
		layouts, err := Compile(f)
		if err != nil {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func unparseable(raw any, formats []string) error {
	return &etlerr.ParseError{Value: raw, Formats: formats, Err: ErrUnparseable}
}
