package etlerr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"catalog", &CatalogUnavailableError{Op: "snapshot", Err: io.EOF}, true},
		{"wrapped catalog", fmt.Errorf("run: %w", &CatalogUnavailableError{Op: "insert", Err: io.EOF}), true},
		{"schema", &SchemaError{Table: "t", Err: io.EOF}, false},
		{"persistence", &PersistenceError{Table: "t", Err: io.EOF}, false},
		{"mapping", &MappingAbsentError{Collection: "c"}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsFatal(tt.err); got != tt.want {
				t.Fatalf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestUnwrapChains(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	errs := []error{
		&ParseError{Value: "x", Formats: []string{"%Y"}, Err: cause},
		&SchemaError{Table: "t", Column: "c", Err: cause},
		&PersistenceError{Table: "t", Err: cause},
		&CatalogUnavailableError{Op: "exec", Err: cause},
		&ConfigError{Path: "m.yaml", Err: cause},
		&InputError{Source: "in.json", Err: cause},
	}
	for _, err := range errs {
		if !errors.Is(err, cause) {
			t.Fatalf("errors.Is(%T, cause) = false, want true", err)
		}
		if err.Error() == "" {
			t.Fatalf("%T.Error() is empty", err)
		}
	}
}

func TestSchemaErrorMessage(t *testing.T) {
	t.Parallel()

	err := &SchemaError{Table: "public.customers", Column: "age", Err: errors.New("type conflict")}
	want := "schema public.customers.age: type conflict"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
