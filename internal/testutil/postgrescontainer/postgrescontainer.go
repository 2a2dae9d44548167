// Package postgrescontainer starts the PostgreSQL instance used by the
// db/sql/postgres integration tests.
package postgrescontainer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/adeilh/go-livescore/internal/testutil/container"
)

const (
	hostPort = "55432"
	user     = "livescore"
	password = "secret"
	dbName   = "livescore_test"
)

var postgres = container.New(container.Spec{
	Dockerfile:   "Dockerfile.postgres.test",
	Image:        "livescore-postgres-test",
	Name:         "livescore-postgres-test",
	Ports:        []string{hostPort + ":5432"},
	Ready:        ping,
	ReadyTimeout: 15 * time.Second,
})

// Addr returns host:port for connecting to the test Postgres instance.
func Addr() string { return "127.0.0.1:" + hostPort }

// DSN returns a lib/pq formatted connection string.
func DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", user, password, Addr(), dbName)
}

// Setup builds and runs the container, waiting until it accepts connections.
func Setup() error { return postgres.Start() }

func Teardown() error { return postgres.Stop() }

func ping() error {
	db, err := sql.Open("postgres", DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return db.PingContext(ctx)
}
