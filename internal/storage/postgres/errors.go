package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/storage"
)

// SQLSTATE codes for objects that already exist. 23505 shows up when two
// sessions race on CREATE TABLE/SCHEMA IF NOT EXISTS (pg_type or
// pg_namespace unique index).
var alreadyExists = map[string]bool{
	"42P07": true, // duplicate_table
	"42701": true, // duplicate_column
	"42P06": true, // duplicate_schema
	"42P04": true, // duplicate_database
	"23505": true, // unique_violation
}

func isAlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && alreadyExists[pgErr.Code]
}

func isUndefinedDatabase(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "3D000"
}

// isUnavailable reports connection failures, connection exceptions (class
// 08) and operator interventions such as admin_shutdown (57P01).
func isUnavailable(err error) bool {
	if storage.IsConnectionError(err) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0")
	}
	return false
}

// classify prefixes err with op and marks connectivity loss.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		err = fmt.Errorf("postgres: %s: %w (%s)", op, err, pgErr.Detail)
	} else {
		err = fmt.Errorf("postgres: %s: %w", op, err)
	}
	if isUnavailable(err) {
		return storage.Unavailable(err)
	}
	return err
}
