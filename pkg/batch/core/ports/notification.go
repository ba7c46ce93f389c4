// Package ports holds outbound notification ports.
package ports

import (
	"context"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
)

// Notifier is told about every finalized session.
type Notifier interface {
	NotifySessionEnd(ctx context.Context, summary model.SessionSummary) error
}
