// Package testutil opens a PostgreSQL pool for repository tests.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zhirschtritt/userposts/internal/migrations"
	"github.com/zhirschtritt/userposts/internal/repository"
)

// OpenMigratedPool opens a pool against PG_DSN and applies both services' schemas.
//
// It is destructive: it resets the public schema.
func OpenMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set; skipping Postgres repository tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := repository.NewPool(ctx, dsn, repository.PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, schema := range []migrations.Schema{migrations.UsersSchema, migrations.PostsSchema} {
		m, err := migrations.NewMigrator(schema, dsn, logger)
		if err != nil {
			t.Fatalf("create %s migrator: %v", schema, err)
		}
		upErr := m.Up()
		_ = m.Close()
		if upErr != nil {
			t.Fatalf("apply %s migrations: %v", schema, upErr)
		}
	}

	return pool
}
