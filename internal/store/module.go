package store

import (
	"go.uber.org/fx"

	"github.com/tigerroll/matchday/pkg/batch/adapter/database"
	port "github.com/tigerroll/matchday/pkg/batch/core/application/port"
	config "github.com/tigerroll/matchday/pkg/batch/core/config"
	tx "github.com/tigerroll/matchday/pkg/batch/core/tx"
)

// Params defines the dependencies of the Fx-provided Store.
type Params struct {
	fx.In
	Resolver  database.DBConnectionResolver
	TxFactory tx.TransactionManagerFactory
	Cfg       *config.Config
}

// NewStoreFromParams builds the Store on the configured store connection.
func NewStoreFromParams(p Params) *Store {
	return NewStore(p.Resolver, p.TxFactory, p.Cfg.Matchday.Infrastructure.StoreRef(), nil)
}

// Module provides the Store and exposes it as the port.DataStore.
var Module = fx.Provide(
	NewStoreFromParams,
	func(s *Store) port.DataStore { return s },
)
