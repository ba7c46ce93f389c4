// Package sqlite provides the GORM DBProvider for SQLite databases.
package sqlite

import (
	"errors"

	"go.uber.org/fx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/matchday/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/matchday/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/matchday/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/matchday/pkg/batch/core/config"
)

func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the SQLite DSN: the file path, with foreign keys and a busy
// timeout enabled so concurrent readers (status --watch) do not fail on a locked file.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	if c.Database == ":memory:" {
		return "file::memory:?cache=shared&_foreign_keys=on"
	}
	return "file:" + c.Database + "?_busy_timeout=5000&_foreign_keys=on"
}

// SQLiteDBProvider implements database.DBProvider for SQLite.
type SQLiteDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates the SQLite DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &SQLiteDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "sqlite")}
}

// Module contributes the SQLite provider to the db_providers group.
var Module = fx.Provide(
	fx.Annotate(
		NewProvider,
		fx.ResultTags(`group:"`+database.DBProviderGroup+`"`),
	),
)
