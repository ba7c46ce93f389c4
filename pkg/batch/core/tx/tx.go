// Package tx defines the transaction ports used by repositories.
//
// Repositories look for an active Tx in the context under TxContextKey and run their
// statements inside it; without one they fall back to the plain connection.
package tx

import (
	"context"
	"database/sql"

	"github.com/tigerroll/matchday/pkg/batch/adapter/database"
)

type txKey struct{}

// TxContextKey is the context key holding the active Tx.
var TxContextKey = txKey{}

// WithTx returns a context carrying t.
func WithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, TxContextKey, t)
}

// FromContext returns the Tx stored in ctx, if any.
func FromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(TxContextKey).(Tx)
	return t, ok && t != nil
}

// TxExecutor is the statement surface available both on a connection and inside a transaction.
type TxExecutor interface {
	database.DBExecutor
}

// Tx is an open transaction.
type Tx interface {
	TxExecutor

	Savepoint(name string) error
	RollbackToSavepoint(name string) error
}

// TransactionManager begins and ends transactions on one named connection.
type TransactionManager interface {
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	Commit(tx Tx) error
	Rollback(tx Tx) error
}

// TransactionManagerFactory creates a TransactionManager bound to a connection.
type TransactionManagerFactory interface {
	NewTransactionManager(conn database.DBConnection) TransactionManager
}

// Run executes fn inside a transaction from m, committing on success and rolling back on
// error or panic. The transaction is available to fn through ctx.
func Run(ctx context.Context, m TransactionManager, fn func(ctx context.Context) error) (err error) {
	t, err := m.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = m.Rollback(t)
			panic(p)
		}
		if err != nil {
			_ = m.Rollback(t)
		}
	}()

	if err = fn(WithTx(ctx, t)); err != nil {
		return err
	}
	return m.Commit(t)
}
