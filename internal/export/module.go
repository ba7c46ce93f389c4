package export

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/matchday/internal/store"
	"github.com/tigerroll/matchday/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/matchday/pkg/batch/adapter/storage/config"
	_ "github.com/tigerroll/matchday/pkg/batch/adapter/storage/gcs"
	_ "github.com/tigerroll/matchday/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/matchday/pkg/batch/core/config"
)

// StorageConfig maps the export section onto a storage connection config.
func StorageConfig(cfg config.ExportConfig) storageConfig.StorageConfig {
	return storageConfig.StorageConfig{
		Type:            cfg.Storage,
		BucketName:      cfg.Bucket,
		CredentialsFile: cfg.CredentialsFile,
		BaseDir:         cfg.BaseDir,
	}
}

// NewStorageConnection opens the export storage and closes it on shutdown.
func NewStorageConnection(lc fx.Lifecycle, cfg *config.Config) (storage.StorageConnection, error) {
	conn, err := storage.Open(context.Background(), StorageConfig(cfg.Matchday.Export), "export")
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return conn.Close() }})
	return conn, nil
}

// NewExporterFromConfig is the Fx constructor of Exporter.
func NewExporterFromConfig(s *store.Store, conn storage.StorageConnection, cfg *config.Config) *Exporter {
	return NewExporter(s, conn, cfg.Matchday.Export.Bucket, cfg.Matchday.Export.Compression, nil)
}

// Module provides the export storage connection and the Exporter.
var Module = fx.Provide(NewStorageConnection, NewExporterFromConfig)
