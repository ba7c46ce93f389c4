package migration

import (
	"context"
	"fmt"
	"io/fs"

	"go.uber.org/fx"

	"github.com/tigerroll/matchday/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/matchday/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/matchday/pkg/batch/component/tasklet/migration/filesystem"
	config "github.com/tigerroll/matchday/pkg/batch/core/config"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
)

const runnerName = "MigrationRunner"

// MigrationRunner migrates every configured connection (ledger and store) with the
// embedded migrations of its dialect.
type MigrationRunner struct {
	cfg         *config.Config
	providers   map[string]database.DBProvider
	migrationFS fs.FS
	newMigrator MigratorFactory
}

// RunnerParams defines the dependencies of the MigrationRunner.
type RunnerParams struct {
	fx.In
	Cfg         *config.Config
	DBProviders []database.DBProvider `group:"db_providers"`
	MigrationFS fs.FS                 `name:"matchdayMigrationsFS"`
}

// NewMigrationRunnerFromParams is the Fx constructor of MigrationRunner.
func NewMigrationRunnerFromParams(p RunnerParams) *MigrationRunner {
	return NewMigrationRunner(p.Cfg, p.DBProviders, p.MigrationFS, NewMigrator)
}

// NewMigrationRunner creates a MigrationRunner. A nil migrationFS uses the embedded migrations.
func NewMigrationRunner(cfg *config.Config, providers []database.DBProvider, migrationFS fs.FS, newMigrator MigratorFactory) *MigrationRunner {
	byType := make(map[string]database.DBProvider, len(providers))
	for _, p := range providers {
		byType[p.Type()] = p
	}
	if migrationFS == nil {
		migrationFS = filesystem.ProvideMigrationsFS()
	}
	if newMigrator == nil {
		newMigrator = NewMigrator
	}
	return &MigrationRunner{cfg: cfg, providers: byType, migrationFS: migrationFS, newMigrator: newMigrator}
}

// Run executes command ("up" or "down") on every distinct connection.
func (r *MigrationRunner) Run(ctx context.Context, command string) error {
	if command != CommandUp && command != CommandDown {
		return exception.NewBatchErrorf(runnerName, "unknown migration command: %s", command)
	}
	for _, ref := range r.cfg.Matchday.Infrastructure.Refs() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.migrate(ctx, ref, command); err != nil {
			return err
		}
	}
	return nil
}

func (r *MigrationRunner) migrate(ctx context.Context, ref, command string) error {
	dbConfig, err := gormadapter.DecodeDatabaseConfig(r.cfg, ref)
	if err != nil {
		return exception.NewBatchError(runnerName, "cannot migrate connection '"+ref+"'", err, false, false)
	}
	provider, ok := r.providers[dbConfig.Type]
	if !ok {
		return exception.NewBatchErrorf(runnerName, "DBProvider for type '%s' not found (connection '%s')", dbConfig.Type, ref)
	}

	dbConn, err := provider.ForceReconnect(ref)
	if err != nil {
		return exception.NewBatchError(runnerName, fmt.Sprintf("failed to connect '%s' before migration", ref), err, false, true)
	}

	migrator := r.newMigrator(dbConn)
	switch command {
	case CommandUp:
		err = migrator.Up(ctx, r.migrationFS, dbConn.Type(), MigrationsTable)
	case CommandDown:
		err = migrator.Down(ctx, r.migrationFS, dbConn.Type(), MigrationsTable)
	}
	if err != nil {
		return exception.NewBatchError(runnerName, fmt.Sprintf("migration '%s' failed on '%s'", command, ref), err, false, false)
	}

	// golang-migrate closes the *sql.DB it was handed; later users need a fresh pool.
	if _, err := provider.ForceReconnect(ref); err != nil {
		return exception.NewBatchError(runnerName, fmt.Sprintf("failed to reconnect '%s' after migration", ref), err, false, true)
	}
	log.Infof("Connection '%s' (%s) migrated '%s'.", ref, dbConn.Type(), command)
	return nil
}
