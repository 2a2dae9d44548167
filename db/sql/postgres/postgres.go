// Package postgres holds the PostgreSQL plumbing: connection setup,
// schema migrations and the favorites repository.
package postgres

import (
	"context"
	"database/sql"
)

// Connect opens a PostgreSQL connection and applies the favorites schema.
func Connect(ctx context.Context, opts ...Option) (*sql.DB, error) {
	db, err := Open(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db, FavoritesSchema...); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the given statements using the provided context.
func Migrate(ctx context.Context, db *sql.DB, statements ...string) error {
	return ApplyMigrations(ctx, db, statements...)
}
