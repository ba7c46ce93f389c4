// Package app assembles the Fx graph shared by every matchday command.
package app

import (
	"context"
	"io"
	"os"
	"strings"

	"go.uber.org/fx"

	"github.com/tigerroll/matchday/internal/collector"
	"github.com/tigerroll/matchday/internal/export"
	"github.com/tigerroll/matchday/internal/source/sofascore"
	"github.com/tigerroll/matchday/internal/store"
	"github.com/tigerroll/matchday/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/matchday/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/matchday/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/matchday/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/matchday/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/matchday/pkg/batch/component/tasklet/migration"
	"github.com/tigerroll/matchday/pkg/batch/core/application/usecase"
	"github.com/tigerroll/matchday/pkg/batch/core/config"
	infraMetrics "github.com/tigerroll/matchday/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/matchday/pkg/batch/infrastructure/repository/sql"
	batchlistener "github.com/tigerroll/matchday/pkg/batch/listener"
	"github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

var log = logger.For("App")

// DBProviderMap lists the dialects a DB_ADAPTERS entry may name.
var DBProviderMap = map[string]func(cfg *config.Config) database.DBProvider{
	"postgres": postgres.NewProvider,
	"mysql":    mysql.NewProvider,
	"sqlite":   sqlite.NewProvider,
}

// DefaultDBAdapters is used when DB_ADAPTERS is not set.
const DefaultDBAdapters = "postgres,mysql,sqlite"

// Bootstrap holds what the binary knows before configuration is loaded.
type Bootstrap struct {
	EnvFilePath    string
	EmbeddedConfig config.EmbeddedConfig
	// DBAdapters is a comma-separated subset of DBProviderMap keys.
	DBAdapters string
	Stdout     io.Writer
}

// DBProviderOptions contributes the selected dialect providers to the db_providers group.
func DBProviderOptions(adapters string) fx.Option {
	if adapters == "" {
		adapters = DefaultDBAdapters
	}
	var options []fx.Option
	for _, name := range strings.Split(adapters, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		provider, ok := DBProviderMap[name]
		if !ok {
			log.Warnf("DB adapter '%s' is not supported. Skipping.", name)
			continue
		}
		options = append(options, fx.Provide(fx.Annotate(provider, fx.ResultTags(`group:"`+database.DBProviderGroup+`"`))))
		log.Debugf("DB adapter '%s' registered.", name)
	}
	return fx.Options(options...)
}

// Options returns the full graph. Constructors run only for what a command pulls in,
// so the status command never builds the HTTP client and migrate never opens the ledger.
func Options(b Bootstrap) fx.Option {
	stdout := b.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	return fx.Options(
		fx.Supply(
			b.EmbeddedConfig,
			fx.Annotate(b.EnvFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(stdout, fx.As(new(io.Writer)), fx.ResultTags(`name:"stdout"`)),
		),
		logger.Module,
		config.Module,

		DBProviderOptions(b.DBAdapters),
		gormadapter.Module,
		migration.Module,
		sql.Module,

		infraMetrics.Module,
		batchlistener.Module,
		usecase.Module,

		sofascore.Module,
		store.Module,
		collector.Module,
		export.Module,
	)
}

// Run starts a graph built from opts, calls fn, and stops the graph. Targets for
// fx.Populate belong in opts.
func Run(ctx context.Context, opts fx.Option, fn func(ctx context.Context) error) (err error) {
	application := fx.New(opts)
	if err := application.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, application.StartTimeout())
	defer cancel()
	if err := application.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), application.StopTimeout())
		defer cancel()
		if stopErr := application.Stop(stopCtx); stopErr != nil {
			log.Warnf("Application did not stop cleanly: %v", stopErr)
			if err == nil {
				err = stopErr
			}
		}
	}()
	return fn(ctx)
}
