// Package database defines the database adapter ports: statement execution, named
// connections, their resolver and the per-dialect providers.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/tigerroll/matchday/pkg/batch/adapter/database/config"
	coreAdapter "github.com/tigerroll/matchday/pkg/batch/core/adapter"
)

// Operation names accepted by DBExecutor.ExecuteUpdate.
const (
	OpCreate = "CREATE"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// DBExecutor is the statement surface shared by connections and transactions.
// Query maps are used as equality WHERE clauses; a slice value becomes IN.
type DBExecutor interface {
	// ExecuteUpdate runs CREATE, UPDATE (struct, non-zero fields) or DELETE.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpdateColumns sets the given columns, zero values included, on rows matching query.
	ExecuteUpdateColumns(ctx context.Context, tableName string, query map[string]interface{}, values map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpsert inserts model; on conflict it updates updateColumns, or does nothing when empty.
	ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error)

	ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error

	ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error

	Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error)

	Pluck(ctx context.Context, model interface{}, column string, target interface{}, query map[string]interface{}) error

	// ExecuteRaw runs a read-only SQL statement and scans the rows into target.
	ExecuteRaw(ctx context.Context, target interface{}, sql string, args ...interface{}) error
}

// DBConnection is a named, pooled connection.
type DBConnection interface {
	coreAdapter.ResourceConnection
	DBExecutor

	IsTableNotExistError(err error) bool
	IsDuplicateKeyError(err error) bool
	RefreshConnection(ctx context.Context) error
	Config() dbconfig.DatabaseConfig
	GetSQLDB() (*sql.DB, error)
}

// DBConnectionResolver resolves connection names from configuration to live connections.
type DBConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider opens and caches connections of one dialect.
type DBProvider interface {
	GetConnection(name string) (DBConnection, error)
	CloseAll() error
	Type() string
	ForceReconnect(name string) (DBConnection, error)
}

// DBProviderGroup is the Fx value group name DB providers are collected into.
const DBProviderGroup = "db_providers"
