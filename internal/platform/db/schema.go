package db

import (
	"context"
	_ "embed"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is idempotent DDL for the characters table. It is applied on every
// start; there is no versioning.
//
//go:embed schema.sql
var Schema string

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return errors.Wrap(err, "ensure schema")
	}
	return nil
}
