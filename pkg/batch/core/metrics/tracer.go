package metrics

import (
	"context"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
)

// Tracer abstracts distributed tracing of sessions, batches and items.
// Each Start method returns a context carrying the new span and a function ending it.
type Tracer interface {
	StartSessionSpan(ctx context.Context, session *model.SessionRecord) (context.Context, func())

	StartBatchSpan(ctx context.Context, kind model.ItemKind, index, size int) (context.Context, func())

	StartItemSpan(ctx context.Context, item model.WorkItem) (context.Context, func())

	// RecordError records err on the span in ctx.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent adds an event to the span in ctx.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
