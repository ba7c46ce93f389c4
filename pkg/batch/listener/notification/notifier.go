package notification

import (
	"context"
	"io"
	"sync"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/core/ports"
)

// SummaryNotifier prints a summary table for each finalized session.
type SummaryNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewSummaryNotifier creates a notifier rendering into out.
func NewSummaryNotifier(out io.Writer) *SummaryNotifier {
	return &SummaryNotifier{out: out}
}

// NotifySessionEnd renders the summary.
func (n *SummaryNotifier) NotifySessionEnd(_ context.Context, summary model.SessionSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	RenderSummary(n.out, summary)
	return nil
}

var _ ports.Notifier = (*SummaryNotifier)(nil)
