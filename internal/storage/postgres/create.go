package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DefaultAdminDatabase is used when no admin database is configured.
const DefaultAdminDatabase = "postgres"

// ensureDatabase connects to the admin database with the credentials of
// target and creates target.Database unless pg_database already lists it.
func ensureDatabase(ctx context.Context, target *pgx.ConnConfig, admin string) error {
	name := target.Database
	if name == "" {
		return fmt.Errorf("postgres: create database: DSN names no database")
	}
	acfg := adminConfig(target, admin)

	conn, err := pgx.ConnectConfig(ctx, acfg)
	if err != nil {
		return classify("connect admin database "+acfg.Database, err)
	}
	defer conn.Close(ctx)

	var exists bool
	if err := conn.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists); err != nil {
		return classify("lookup database "+name, err)
	}
	if exists {
		return nil
	}
	if _, err := conn.Exec(ctx, createDatabaseSQL(name)); err != nil && !isAlreadyExists(err) {
		return classify("create database "+name, err)
	}
	return nil
}

func adminConfig(target *pgx.ConnConfig, admin string) *pgx.ConnConfig {
	if admin == "" {
		admin = DefaultAdminDatabase
	}
	c := target.Copy()
	c.Database = admin
	return c
}

func createDatabaseSQL(name string) string {
	return "CREATE DATABASE " + pgx.Identifier{name}.Sanitize()
}
