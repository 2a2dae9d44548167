package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/adeilh/go-livescore/favorites"
	testpg "github.com/adeilh/go-livescore/internal/testutil/postgrescontainer"
)

const testTimeout = 5 * time.Second

var containerStarted bool

func TestMain(m *testing.M) {
	code := m.Run()
	if containerStarted {
		_ = testpg.Teardown()
	}
	os.Exit(code)
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background()); !errors.Is(err, ErrMissingDSN) {
		t.Fatalf("expected ErrMissingDSN, got %v", err)
	}
}

func TestApplyMigrationsNilDB(t *testing.T) {
	if err := ApplyMigrations(context.Background(), nil, FavoritesSchema...); err == nil {
		t.Fatalf("expected error for nil db")
	}
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	cfg := defaultOptions()
	for _, opt := range []Option{
		WithDSN(""),
		WithMaxOpenConns(0),
		WithMaxIdleConns(-1),
		WithConnMaxLifetime(0),
		WithPingTimeout(-time.Second),
	} {
		opt(&cfg)
	}
	if cfg != defaultOptions() {
		t.Fatalf("invalid values should leave defaults untouched, got %+v", cfg)
	}

	WithDSN("postgres://x")(&cfg)
	WithMaxOpenConns(3)(&cfg)
	if cfg.DSN != "postgres://x" || cfg.MaxOpenConns != 3 {
		t.Fatalf("unexpected options %+v", cfg)
	}
}

func TestFavoritesRepositoryRejectsInvalidInput(t *testing.T) {
	repo := NewFavoritesRepository(nil)
	ctx := context.Background()

	if err := repo.Add(ctx, favorites.Favorite{ClientID: "c", Kind: "coach", ID: 1}); !errors.Is(err, favorites.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
	if err := repo.Remove(ctx, "", favorites.KindTeam, 1); !errors.Is(err, favorites.ErrInvalidClient) {
		t.Fatalf("expected ErrInvalidClient, got %v", err)
	}
	if _, err := repo.List(ctx, "c", "coach"); !errors.Is(err, favorites.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestFavoritesRepositoryLifecycle(t *testing.T) {
	db := openTestDB(t)
	resetSchema(t, db)
	repo := NewFavoritesRepository(db)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	const client = "7f9c2ba4-client"
	for _, fav := range []favorites.Favorite{
		{ClientID: client, Kind: favorites.KindTeam, ID: 33},
		{ClientID: client, Kind: favorites.KindLeague, ID: 39},
		{ClientID: client, Kind: favorites.KindTeam, ID: 33},
		{ClientID: "someone-else", Kind: favorites.KindTeam, ID: 541},
	} {
		if err := repo.Add(ctx, fav); err != nil {
			t.Fatalf("Add(%+v) error: %v", fav, err)
		}
	}

	all, err := repo.List(ctx, client)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 favorites after duplicate add, got %d: %+v", len(all), all)
	}
	for _, fav := range all {
		if fav.CreatedAt.IsZero() {
			t.Fatalf("expected created_at to be populated: %+v", fav)
		}
	}

	teams, err := repo.List(ctx, client, favorites.KindTeam)
	if err != nil {
		t.Fatalf("List(team) error: %v", err)
	}
	if len(teams) != 1 || teams[0].ID != 33 {
		t.Fatalf("unexpected team favorites %+v", teams)
	}

	if err := repo.Remove(ctx, client, favorites.KindTeam, 33); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if err := repo.Remove(ctx, client, favorites.KindTeam, 33); !errors.Is(err, favorites.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}

	remaining, err := repo.List(ctx, client)
	if err != nil {
		t.Fatalf("List after remove error: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Kind != favorites.KindLeague {
		t.Fatalf("unexpected remaining favorites %+v", remaining)
	}
}

func TestConnectAppliesSchema(t *testing.T) {
	requirePostgres(t)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	db, err := Connect(ctx, WithDSN(testpg.DSN()))
	if err != nil {
		t.Fatalf("Connect error: %v", err)
	}
	defer db.Close()

	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT to_regclass('public.favorites') IS NOT NULL`).Scan(&exists); err != nil {
		t.Fatalf("query error: %v", err)
	}
	if !exists {
		t.Fatalf("expected favorites table to exist")
	}
}

func requirePostgres(t *testing.T) {
	t.Helper()
	if err := testpg.Setup(); err != nil {
		t.Skipf("postgres integration tests skipped: %v", err)
	}
	containerStarted = true
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	requirePostgres(t)
	db, err := Open(context.Background(), WithDSN(testpg.DSN()))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func resetSchema(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS favorites"); err != nil {
		t.Fatalf("drop favorites failed: %v", err)
	}
	if err := Migrate(ctx, db, FavoritesSchema...); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
}
