package dates

import (
	"fmt"
	"strings"
	"sync"
)

// strptimeDirectives maps strptime directives to Go reference layout chunks.
// %m and %d accept one or two digits, like strptime does. %z expands to two variants (with and without a colon) in compileStrptime.
var strptimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "1",
	'd': "2",
	'e': "_2",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'f': "999999",
	'p': "PM",
	'Z': "MST",
	'b': "Jan",
	'h': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'j': "002",
	'T': "15:04:05",
	'F': "2006-01-02",
	'%': "%",
}

// tokens are matched longest first at every position of a token pattern.
var tokens = []struct {
	tok, layout string
}{
	{"YYYY", "2006"},
	{"SSSSSS", "000000"},
	{"MMMM", "January"},
	{"dddd", "Monday"},
	{"MMM", "Jan"},
	{"SSS", "000"},
	{"ddd", "Mon"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"hh", "03"},
	{"mm", "04"},
	{"ss", "05"},
	{"ZZ", "-0700"},
	{"M", "1"},
	{"D", "2"},
	{"H", "15"},
	{"h", "3"},
	{"A", "PM"},
	{"a", "pm"},
	{"Z", "Z07:00"},
}

var goLayoutMarkers = []string{"2006", "15:04", "Jan", "01/02", "02/01"}

var cache sync.Map // format -> compiled

type compiled struct {
	layouts []string
	err     error
}

// Compile converts a configured format into one or more Go time layouts.
//
// Three notations are accepted: strptime directives ("%Y-%m-%d"), Go
// reference layouts ("2006-01-02") and token patterns ("YYYY-MM-DD").
// Results are cached for the life of the process.
func Compile(format string) ([]string, error) {
	if v, ok := cache.Load(format); ok {
		c := v.(compiled)
		return c.layouts, c.err
	}
	layouts, err := compile(format)
	cache.Store(format, compiled{layouts: layouts, err: err})
	return layouts, err
}

func compile(format string) ([]string, error) {
	switch {
	case strings.TrimSpace(format) == "":
		return nil, fmt.Errorf("dates: empty format")
	case strings.Contains(format, "%"):
		return compileStrptime(format)
	case isGoLayout(format):
		return []string{format}, nil
	default:
		return compileTokens(format)
	}
}

func isGoLayout(format string) bool {
	for _, m := range goLayoutMarkers {
		if strings.Contains(format, m) {
			return true
		}
	}
	return false
}

func compileStrptime(format string) ([]string, error) {
	var b strings.Builder
	hasZone := false
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(format) {
			return nil, fmt.Errorf("dates: dangling %% in %q", format)
		}
		i++
		d := format[i]
		if d == 'z' {
			// placeholder swapped for each zone variant below
			b.WriteString("\x00")
			hasZone = true
			continue
		}
		chunk, ok := strptimeDirectives[d]
		if !ok {
			return nil, fmt.Errorf("dates: unsupported directive %%%c in %q", d, format)
		}
		b.WriteString(chunk)
	}
	layout := b.String()
	if !hasZone {
		return []string{layout}, nil
	}
	return []string{
		strings.ReplaceAll(layout, "\x00", "Z0700"),
		strings.ReplaceAll(layout, "\x00", "Z07:00"),
	}, nil
}

func compileTokens(format string) ([]string, error) {
	var b strings.Builder
	matched := false
	for i := 0; i < len(format); {
		hit := false
		for _, t := range tokens {
			if strings.HasPrefix(format[i:], t.tok) {
				b.WriteString(t.layout)
				i += len(t.tok)
				hit, matched = true, true
				break
			}
		}
		if !hit {
			b.WriteByte(format[i])
			i++
		}
	}
	if !matched {
		return nil, fmt.Errorf("dates: no date tokens in %q", format)
	}
	return []string{b.String()}, nil
}
