package migration_test

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/matchday/pkg/batch/adapter/database"
	gormsqlite "github.com/tigerroll/matchday/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/matchday/pkg/batch/component/tasklet/migration"
	"github.com/tigerroll/matchday/pkg/batch/core/config"
)

type tableName struct {
	Name string
}

func newSQLiteConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Matchday.System.Logging.Level = string(config.LogLevelSilent)
	cfg.Matchday.AdapterConfigs["metadata"] = map[string]interface{}{
		"type":     "sqlite",
		"database": filepath.Join(t.TempDir(), "matchday.db"),
	}
	return cfg
}

func tables(t *testing.T, provider database.DBProvider) []string {
	t.Helper()
	conn, err := provider.GetConnection("metadata")
	require.NoError(t, err)
	var rows []tableName
	require.NoError(t, conn.ExecuteRaw(context.Background(), &rows,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"))
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return names
}

func TestMigrationRunner_UpAndDownOnSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := newSQLiteConfig(t)
	provider := gormsqlite.NewProvider(cfg)
	t.Cleanup(func() { _ = provider.CloseAll() })

	runner := migration.NewMigrationRunner(cfg, []database.DBProvider{provider}, nil, nil)
	require.NoError(t, runner.Run(ctx, migration.CommandUp))

	assert.ElementsMatch(t, []string{
		"collection_session", "ledger_entry",
		"fixtures", "team_matches", "match_statistics", "player_statistics", "scraping_log",
		migration.MigrationsTable,
	}, tables(t, provider))

	// The connection handed out after the run is usable.
	conn, err := provider.GetConnection("metadata")
	require.NoError(t, err)
	var fixtures []tableName
	require.NoError(t, conn.ExecuteRaw(ctx, &fixtures, "SELECT home_team AS name FROM fixtures"))
	assert.Empty(t, fixtures)

	require.NoError(t, runner.Run(ctx, migration.CommandUp), "re-running up is a no-op")

	require.NoError(t, runner.Run(ctx, migration.CommandDown))
	assert.Equal(t, []string{migration.MigrationsTable}, tables(t, provider))
}

type mockMigrator struct {
	mock.Mock
}

func (m *mockMigrator) Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error {
	return m.Called(path, tableName).Error(0)
}

func (m *mockMigrator) Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error {
	return m.Called(path, tableName).Error(0)
}

func TestMigrationRunner_MigratesEachConnectionOnce(t *testing.T) {
	cfg := newSQLiteConfig(t)
	cfg.Matchday.AdapterConfigs["warehouse"] = map[string]interface{}{
		"type":     "sqlite",
		"database": filepath.Join(t.TempDir(), "warehouse.db"),
	}
	cfg.Matchday.Infrastructure.StoreDBRef = "warehouse"
	provider := gormsqlite.NewProvider(cfg)
	t.Cleanup(func() { _ = provider.CloseAll() })

	m := new(mockMigrator)
	m.On("Up", "sqlite", migration.MigrationsTable).Return(nil).Twice()
	var migrated []string
	factory := func(conn database.DBConnection) migration.Migrator {
		migrated = append(migrated, conn.Name())
		return m
	}

	runner := migration.NewMigrationRunner(cfg, []database.DBProvider{provider}, nil, factory)
	require.NoError(t, runner.Run(context.Background(), migration.CommandUp))
	assert.Equal(t, []string{"metadata", "warehouse"}, migrated)
	m.AssertExpectations(t)
}

func TestMigrationRunner_Errors(t *testing.T) {
	ctx := context.Background()
	cfg := newSQLiteConfig(t)
	provider := gormsqlite.NewProvider(cfg)
	t.Cleanup(func() { _ = provider.CloseAll() })

	m := new(mockMigrator)
	m.On("Up", "sqlite", migration.MigrationsTable).Return(errors.New("dirty database version 2"))
	factory := func(database.DBConnection) migration.Migrator { return m }

	runner := migration.NewMigrationRunner(cfg, []database.DBProvider{provider}, nil, factory)
	assert.ErrorContains(t, runner.Run(ctx, "sideways"), "unknown migration command")
	assert.ErrorContains(t, runner.Run(ctx, migration.CommandUp), "dirty database version 2")

	noProvider := migration.NewMigrationRunner(cfg, nil, nil, factory)
	assert.ErrorContains(t, noProvider.Run(ctx, migration.CommandUp), "DBProvider for type 'sqlite' not found")

	cfg.Matchday.Infrastructure.LedgerDBRef = "missing"
	assert.ErrorContains(t, runner.Run(ctx, migration.CommandUp), "'missing' not found")
}
