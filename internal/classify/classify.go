// Package classify assigns each document its terminal object status.
package classify

// Status is the terminal object status of a document.
type Status string

const (
	New           Status = "NEW"
	AlreadyExists Status = "ALREADY_EXISTS"
	Missing       Status = "MISSING"
)

// Existence is the outcome of the natural-key lookup.
type Existence int

const (
	// Unknown means the lookup was not possible, e.g. a key attribute is
	// missing or the existence lookup failed.
	Unknown Existence = iota
	Absent
	Present
)

func (e Existence) String() string {
	switch e {
	case Absent:
		return "absent"
	case Present:
		return "present"
	}
	return "unknown"
}

// Input is everything classification looks at.
type Input struct {
	MappingFound bool
	// TableReady is false when reconciliation left the table unreachable.
	TableReady bool
	Existence  Existence
}

// Classify applies the precedence rules: MISSING when there is no mapping or
// the table is unreachable; otherwise the key lookup decides between NEW and
// ALREADY_EXISTS. Without a usable lookup the document is MISSING.
func Classify(in Input) Status {
	if !in.MappingFound || !in.TableReady {
		return Missing
	}
	switch in.Existence {
	case Absent:
		return New
	case Present:
		return AlreadyExists
	default:
		return Missing
	}
}
