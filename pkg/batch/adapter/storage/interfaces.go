// Package storage defines the object storage port used by exports, and a registry of
// backends selected by configuration.
package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	storageConfig "github.com/tigerroll/matchday/pkg/batch/adapter/storage/config"
	coreAdapter "github.com/tigerroll/matchday/pkg/batch/core/adapter"
)

// StorageExecutor defines the object operations every backend supports.
type StorageExecutor interface {
	// Upload writes data to bucket/objectName, replacing any existing object.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens bucket/objectName. The caller closes the reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for each object under prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes bucket/objectName. Missing objects are not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection is a named connection to one storage backend.
type StorageConnection interface {
	coreAdapter.ResourceConnection
	StorageExecutor
}

// Factory opens a connection for a backend type.
type Factory func(ctx context.Context, cfg storageConfig.StorageConfig, name string) (StorageConnection, error)

var (
	factories   = make(map[string]Factory)
	factoriesMu sync.RWMutex
)

// RegisterFactory registers the Factory for a storage type. Backends call it from init.
func RegisterFactory(storageType string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[storageType] = f
}

// Open opens a connection using the factory registered for cfg.Type.
func Open(ctx context.Context, cfg storageConfig.StorageConfig, name string) (StorageConnection, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Type]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for type %q", cfg.Type)
	}
	return f(ctx, cfg, name)
}
