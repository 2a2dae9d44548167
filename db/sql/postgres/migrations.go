package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var errNilDB = errors.New("postgres: db is nil")

// FavoritesSchema creates the favorites table and its lookup index.
var FavoritesSchema = []string{
	`CREATE TABLE IF NOT EXISTS favorites (
		client_id  TEXT        NOT NULL,
		kind       TEXT        NOT NULL CHECK (kind IN ('team', 'league')),
		item_id    INTEGER     NOT NULL CHECK (item_id > 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (client_id, kind, item_id)
	)`,
	`CREATE INDEX IF NOT EXISTS favorites_client_created_idx ON favorites (client_id, created_at)`,
}

// ApplyMigrations executes the provided SQL statements in order within a
// single transaction.
func ApplyMigrations(ctx context.Context, db *sql.DB, statements ...string) error {
	if db == nil {
		return errNilDB
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	for i, stmt := range statements {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("postgres: migrate statement %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: migrate commit: %w", err)
	}
	return nil
}
