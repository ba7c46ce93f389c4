package migration

import (
	"go.uber.org/fx"

	"github.com/tigerroll/matchday/pkg/batch/component/tasklet/migration/filesystem"
)

// Module provides the MigrationRunner and the embedded migrations it applies.
var Module = fx.Options(
	filesystem.Module,
	fx.Provide(NewMigrationRunnerFromParams),
)
