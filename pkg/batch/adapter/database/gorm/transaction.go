package gorm

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/matchday/pkg/batch/adapter/database"
	"github.com/tigerroll/matchday/pkg/batch/core/tx"
)

// GormTxAdapter implements tx.Tx over an open GORM transaction.
type GormTxAdapter struct {
	executor
}

// NewGormTxAdapter wraps a *gorm.DB that has already begun a transaction.
func NewGormTxAdapter(db *gorm.DB) *GormTxAdapter {
	return &GormTxAdapter{executor: executor{db: db}}
}

func (t *GormTxAdapter) Savepoint(name string) error {
	return t.db.SavePoint(name).Error
}

func (t *GormTxAdapter) RollbackToSavepoint(name string) error {
	return t.db.RollbackTo(name).Error
}

// GormTransactionManager implements tx.TransactionManager for one named connection.
// The connection is resolved on every Begin so a reconnect is picked up.
type GormTransactionManager struct {
	dbResolver database.DBConnectionResolver
	dbName     string
}

func (m *GormTransactionManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	conn, err := m.dbResolver.ResolveDBConnection(ctx, m.dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB connection '%s' for transaction: %w", m.dbName, err)
	}
	adapter, ok := conn.(*GormDBAdapter)
	if !ok {
		return nil, fmt.Errorf("connection '%s' is %T, not a GORM connection", m.dbName, conn)
	}

	var txOpts *sql.TxOptions
	if len(opts) > 0 {
		txOpts = opts[0]
	}
	gormTx := adapter.GetGormDB().WithContext(ctx).Begin(txOpts)
	if gormTx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", gormTx.Error)
	}
	return NewGormTxAdapter(gormTx), nil
}

func (m *GormTransactionManager) Commit(t tx.Tx) error {
	gt, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type %T", t)
	}
	return gt.db.Commit().Error
}

func (m *GormTransactionManager) Rollback(t tx.Tx) error {
	gt, ok := t.(*GormTxAdapter)
	if !ok {
		return fmt.Errorf("invalid transaction type %T", t)
	}
	return gt.db.Rollback().Error
}

// GormTransactionManagerFactory is the GORM implementation of tx.TransactionManagerFactory.
type GormTransactionManagerFactory struct {
	dbResolver database.DBConnectionResolver
}

// NewGormTransactionManagerFactory creates a GormTransactionManagerFactory.
func NewGormTransactionManagerFactory(dbResolver database.DBConnectionResolver) tx.TransactionManagerFactory {
	return &GormTransactionManagerFactory{dbResolver: dbResolver}
}

func (f *GormTransactionManagerFactory) NewTransactionManager(conn database.DBConnection) tx.TransactionManager {
	return &GormTransactionManager{dbResolver: f.dbResolver, dbName: conn.Name()}
}
