// Package migration applies the embedded schema migrations to the ledger and store
// databases with golang-migrate.
package migration

import (
	"context"
	"io/fs"

	"github.com/tigerroll/matchday/pkg/batch/adapter/database"
)

// MigrationsTable tracks the applied migration version.
const MigrationsTable = "matchday_migrations"

// Commands accepted by MigrationRunner.Run.
const (
	CommandUp   = "up"
	CommandDown = "down"
)

// Migrator handles database schema migrations on one connection.
type Migrator interface {
	// Up applies all pending migrations found under path.
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Down rolls back all applied migrations.
	Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
}

// MigratorFactory creates a Migrator bound to a connection.
type MigratorFactory func(dbConn database.DBConnection) Migrator
