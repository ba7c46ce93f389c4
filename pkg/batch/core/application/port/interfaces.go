// Package port defines the collaborators the collector depends on but does not implement:
// the source being collected from and the store receiving the records.
package port

import (
	"context"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
)

// RecordSet is the raw structured output of one fetched WorkItem. Element types are
// defined by the SourceFetcher and understood by the matching DataStore.
type RecordSet []interface{}

// SourceFetcher retrieves the records of one WorkItem.
//
// Errors must wrap retry.ErrSoftLimited, retry.ErrHardError or retry.ErrNetworkError so
// the backoff policy can classify them; unwrapped errors are treated as hard errors.
type SourceFetcher interface {
	Fetch(ctx context.Context, item model.WorkItem, identity string) (RecordSet, error)
}

// DataStore persists fetched records. Upsert must be idempotent under the records'
// natural keys: replaying it after a crash is a no-op. A nil error is the acknowledgement.
type DataStore interface {
	Upsert(ctx context.Context, item model.WorkItem, records RecordSet) error
}
