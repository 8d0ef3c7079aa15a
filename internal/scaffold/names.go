package scaffold

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxIdentLen is the longest identifier Postgres keeps without truncation.
const maxIdentLen = 63

// normalizeName folds s to a lowercase ASCII identifier: accents are
// stripped, separators collapse to one underscore and anything else is
// dropped. An empty result becomes "col".
func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	ascii, _, _ := transform.String(t, s)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range ascii {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return "col"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "c_" + name
	}
	return truncateName(name)
}

// truncateName keeps the first 10 and last 53 bytes of long names so
// distinguishing suffixes survive.
func truncateName(s string) string {
	if len(s) > maxIdentLen {
		return s[:10] + s[len(s)-(maxIdentLen-10):]
	}
	return s
}

// uniqueNames assigns each name a distinct column, suffixing repeats with
// _2, _3 and so on. Names in reserved get a src_ prefix first.
type uniqueNames struct {
	used     map[string]struct{}
	reserved map[string]struct{}
}

func newUniqueNames(reserved ...string) *uniqueNames {
	u := &uniqueNames{used: make(map[string]struct{}), reserved: make(map[string]struct{})}
	for _, r := range reserved {
		u.reserved[r] = struct{}{}
	}
	return u
}

func (u *uniqueNames) take(name string) string {
	if _, ok := u.reserved[name]; ok {
		name = truncateName("src_" + name)
	}
	candidate := name
	for i := 2; ; i++ {
		if _, ok := u.used[candidate]; !ok {
			break
		}
		suffix := "_" + strconv.Itoa(i)
		base := name
		if len(base)+len(suffix) > maxIdentLen {
			base = base[:maxIdentLen-len(suffix)]
		}
		candidate = base + suffix
	}
	u.used[candidate] = struct{}{}
	return candidate
}
