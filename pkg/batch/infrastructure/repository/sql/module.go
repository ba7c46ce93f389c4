package sql

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/matchday/pkg/batch/adapter/database"
	"github.com/tigerroll/matchday/pkg/batch/core/config"
	repository "github.com/tigerroll/matchday/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/matchday/pkg/batch/core/tx"
	"github.com/tigerroll/matchday/pkg/batch/support/util/exception"
)

// RepositoryParams defines the dependencies required by NewRepository.
type RepositoryParams struct {
	fx.In
	DBResolver database.DBConnectionResolver
	TxFactory  tx.TransactionManagerFactory
	Cfg        *config.Config
}

// NewRepository resolves the ledger connection and builds the repository on it.
func NewRepository(p RepositoryParams) (*SQLRepository, error) {
	dbName := LedgerDBRef(p.Cfg)
	conn, err := p.DBResolver.ResolveDBConnection(context.Background(), dbName)
	if err != nil {
		return nil, exception.NewBatchError("SQLRepository", "failed to open ledger database '"+dbName+"'", err, false, false)
	}
	return NewSQLRepository(p.DBResolver, p.TxFactory.NewTransactionManager(conn), dbName), nil
}

// LedgerDBRef returns the configured ledger connection name.
func LedgerDBRef(cfg *config.Config) string {
	return cfg.Matchday.Infrastructure.LedgerRef()
}

// LedgerTxTag names the transaction manager of the ledger connection.
const LedgerTxTag = `name:"ledger_tx"`

// Module provides the SQL repository as repository.Repository, and its transaction
// manager under LedgerTxTag.
var Module = fx.Provide(
	NewRepository,
	func(r *SQLRepository) repository.Repository { return r },
	fx.Annotate(
		func(r *SQLRepository) tx.TransactionManager { return r.TxManager },
		fx.ResultTags(LedgerTxTag),
	),
)
