// Package dbschema carries the Postgres DDL for every stepgate table.
//
// The DDL is idempotent (CREATE ... IF NOT EXISTS) so Apply can run on every boot
// when STEPGATE_DB_AUTO_MIGRATE is enabled, and per test schema in integration tests.
package dbschema

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stepgate/cmd/internal/pgutil"
)

//go:embed schema.sql
var schemaSQL string

// SQL renders the DDL for the given schema.
func SQL(schema string) (string, error) {
	schema, err := pgutil.CheckSchema(schema)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(schemaSQL, "{{schema}}", pgx.Identifier{schema}.Sanitize()), nil
}

// Apply creates the schema and all tables if missing.
func Apply(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if pool == nil {
		return fmt.Errorf("dbschema: nil pool")
	}
	ddl, err := SQL(schema)
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("dbschema: apply %s: %w", schema, err)
	}
	return nil
}
