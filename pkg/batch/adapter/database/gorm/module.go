package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/matchday/pkg/batch/adapter/database"
	coreAdapter "github.com/tigerroll/matchday/pkg/batch/core/adapter"
)

// Module provides the transaction manager factory and the connection resolver.
// Dialect providers are contributed by the sqlite, postgres and mysql subpackages.
var Module = fx.Options(
	fx.Provide(NewGormTransactionManagerFactory),
	fx.Provide(fx.Annotate(
		NewGormDBConnectionResolver,
		fx.As(new(database.DBConnectionResolver)),
		fx.As(new(coreAdapter.ResourceConnectionResolver)),
	)),
	fx.Invoke(registerProviderShutdown),
)

type shutdownParams struct {
	fx.In
	Lifecycle   fx.Lifecycle
	DBProviders []database.DBProvider `group:"db_providers"`
}

func registerProviderShutdown(p shutdownParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			for _, provider := range p.DBProviders {
				if err := provider.CloseAll(); err != nil {
					log.Warnf("Failed to close %s connections: %v", provider.Type(), err)
				}
			}
			return nil
		},
	})
}
