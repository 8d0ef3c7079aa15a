package mysql

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage"
)

func TestColumnsQuery(t *testing.T) {
	t.Parallel()

	_, args := columnsQuery("orders")
	if args[0] != nil || args[1] != "orders" {
		t.Fatalf("columnsQuery(orders) args = %v, want [<nil> orders]", args)
	}
	_, args = columnsQuery("shop.orders")
	if args[0] != "shop" || args[1] != "orders" {
		t.Fatalf("columnsQuery(shop.orders) args = %v", args)
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		exists      bool
		unavailable bool
	}{
		{"dup column", &mysql.MySQLError{Number: 1060}, true, false},
		{"table exists", fmt.Errorf("exec: %w", &mysql.MySQLError{Number: 1050}), true, false},
		{"gone away", &mysql.MySQLError{Number: 2006}, false, true},
		{"invalid conn", fmt.Errorf("q: %w", mysql.ErrInvalidConn), false, true},
		{"syntax", &mysql.MySQLError{Number: 1064}, false, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isAlreadyExists(tt.err); got != tt.exists {
				t.Fatalf("isAlreadyExists() = %v, want %v", got, tt.exists)
			}
			if got := isUnavailable(tt.err); got != tt.unavailable {
				t.Fatalf("isUnavailable() = %v, want %v", got, tt.unavailable)
			}
		})
	}
}

func TestParseDSN(t *testing.T) {
	t.Parallel()

	cfg, err := parseDSN("etl:secret@tcp(db:3306)/shop")
	if err != nil {
		t.Fatalf("parseDSN: %v", err)
	}
	if cfg.DBName != "shop" || cfg.Params["time_zone"] != "'+00:00'" {
		t.Fatalf("parseDSN() = db %q params %v", cfg.DBName, cfg.Params)
	}

	cfg, err = parseDSN("etl@tcp(db)/shop?time_zone=%27Europe%2FPrague%27")
	if err != nil {
		t.Fatalf("parseDSN: %v", err)
	}
	if cfg.Params["time_zone"] != "'Europe/Prague'" {
		t.Fatalf("explicit time_zone overwritten: %v", cfg.Params)
	}

	if _, err := parseDSN("not a dsn"); err == nil {
		t.Fatalf("parseDSN() accepted garbage")
	}
}

// TestRegistrationUsesHook swaps a package global, so it does not run in
// parallel.
func TestRegistrationUsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		return &Repository{}, func() { closed = true }, nil
	}
	repo, err := storage.New(context.Background(), storage.Config{Kind: "mysql", DSN: "u@tcp(h)/d"})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	repo.Close()
	if !closed {
		t.Fatalf("Close did not call closeFn")
	}
}
