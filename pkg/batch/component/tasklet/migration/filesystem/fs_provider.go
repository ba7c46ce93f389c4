// Package filesystem embeds the per-dialect SQL migrations.
package filesystem

import (
	"embed"
	"io/fs"

	"github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

//go:embed resource
var rawMigrationFS embed.FS

// ProvideMigrationsFS returns the embedded migrations rooted at one directory per
// dialect ("sqlite", "postgres", "mysql").
func ProvideMigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawMigrationFS, "resource")
	if err != nil {
		logger.Fatalf("Failed to open embedded migrations: %v", err)
	}
	return subFS
}
