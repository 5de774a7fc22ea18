package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql
var migrationFS embed.FS

// Schema names the set of tables a service owns.
type Schema string

const (
	UsersSchema Schema = "users"
	PostsSchema Schema = "posts"
)

type Migrator struct {
	migrate *migrate.Migrate
	schema  Schema
	logger  *slog.Logger
}

// NewMigrator prepares migrations for one service's schema. Each schema tracks its
// version in its own table so the two services never step on each other.
func NewMigrator(schema Schema, dbConnString string, logger *slog.Logger) (*Migrator, error) {
	src, err := iofs.New(migrationFS, path.Join("sql", string(schema)))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s migrations: %w", schema, err)
	}

	dbURL, err := withMigrationsTable(dbConnString, string(schema)+"_schema_migrations")
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{
		migrate: m,
		schema:  schema,
		logger:  logger.With("schema", string(schema)),
	}, nil
}

func withMigrationsTable(dbConnString, table string) (string, error) {
	u, err := url.Parse(dbConnString)
	if err != nil {
		return "", fmt.Errorf("failed to parse connection string: %w", err)
	}
	q := u.Query()
	q.Set("x-migrations-table", table)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (m *Migrator) Up() error {
	m.logger.Info("running database migrations")

	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.migrate.Version()
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	m.logger.Info("database migrations completed successfully", "version", version, "dirty", dirty)
	return nil
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}
