package app_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/tigerroll/matchday/internal/app"
	"github.com/tigerroll/matchday/internal/collector"
	"github.com/tigerroll/matchday/pkg/batch/component/tasklet/migration"
	"github.com/tigerroll/matchday/pkg/batch/core/application/usecase"
)

func bootstrap(t *testing.T) app.Bootstrap {
	t.Helper()
	t.Setenv("MATCHDAY_DATABASE_METADATA_TYPE", "sqlite")
	t.Setenv("MATCHDAY_DATABASE_METADATA_DATABASE", filepath.Join(t.TempDir(), "app.db"))
	return app.Bootstrap{
		EnvFilePath:    filepath.Join(t.TempDir(), "missing.env"),
		EmbeddedConfig: []byte("matchday:\n  system:\n    logging:\n      level: ERROR\n"),
		DBAdapters:     "sqlite",
		Stdout:         new(bytes.Buffer),
	}
}

func TestOptions_GraphResolves(t *testing.T) {
	require.NoError(t, fx.ValidateApp(app.Options(bootstrap(t)),
		fx.Populate(new(*collector.Collector), new(usecase.StatusExplorer), new(usecase.SessionOperator), new(*migration.MigrationRunner))))
}

func TestRun_MigrateThenPlan(t *testing.T) {
	b := bootstrap(t)
	ctx := context.Background()

	var runner *migration.MigrationRunner
	require.NoError(t, app.Run(ctx, fx.Options(app.Options(b), fx.Populate(&runner)), func(ctx context.Context) error {
		return runner.Run(ctx, migration.CommandUp)
	}))

	var c *collector.Collector
	var summaries int
	require.NoError(t, app.Run(ctx, fx.Options(app.Options(b), fx.Populate(&c)), func(ctx context.Context) error {
		got, err := c.Collect(ctx, collector.Options{Dates: []string{"2024-11-02"}, DryRun: true})
		summaries = len(got)
		return err
	}))
	assert.Zero(t, summaries)
	assert.Contains(t, b.Stdout.(*bytes.Buffer).String(), "fixtures_by_date:2024-11-02")
}

func TestDBProviderOptions_SkipsUnknown(t *testing.T) {
	assert.NotNil(t, app.DBProviderOptions("sqlite, oracle,"))
}
