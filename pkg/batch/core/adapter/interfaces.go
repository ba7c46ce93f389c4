// Package adapter defines the resource-agnostic connection ports shared by database and storage adapters.
package adapter

import (
	"context"
)

// ResourceConnection is a named connection to an external resource.
type ResourceConnection interface {
	Close() error
	Type() string
	Name() string
}

// ResourceProvider creates and caches ResourceConnections of one type.
type ResourceProvider interface {
	GetConnection(name string) (ResourceConnection, error)
	CloseAll() error
	Type() string
	Name() string
}

// ResourceConnectionResolver resolves a configured name to a live connection.
type ResourceConnectionResolver interface {
	ResolveConnection(ctx context.Context, name string) (ResourceConnection, error)
}
