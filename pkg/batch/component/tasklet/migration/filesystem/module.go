package filesystem

import (
	"go.uber.org/fx"
)

// MigrationsFSTag is the Fx tag of the embedded migrations filesystem.
const MigrationsFSTag = `name:"matchdayMigrationsFS"`

// Module provides the embedded migrations filesystem.
var Module = fx.Provide(fx.Annotate(
	ProvideMigrationsFS,
	fx.ResultTags(MigrationsFSTag),
))
