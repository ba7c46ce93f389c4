package logging

import (
	"context"
	"fmt"
	"strings"

	model "github.com/tigerroll/matchday/pkg/batch/core/domain/model"
	"github.com/tigerroll/matchday/pkg/batch/core/ports"
	logger "github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

var log = logger.For("SessionNotifier")

// LoggingNotifier writes one log line per finalized session.
type LoggingNotifier struct{}

// NewLoggingNotifier creates a new instance of LoggingNotifier.
func NewLoggingNotifier() *LoggingNotifier {
	return &LoggingNotifier{}
}

// NotifySessionEnd logs the summary. Sessions that did not complete are logged as warnings.
func (n *LoggingNotifier) NotifySessionEnd(_ context.Context, summary model.SessionSummary) error {
	msg := FormatSummary(summary)
	if summary.Status == model.SessionCompleted {
		log.Infof("%s", msg)
	} else {
		log.Warnf("%s", msg)
	}
	return nil
}

// FormatSummary renders a summary as a single line.
func FormatSummary(s model.SessionSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "session %s (%s %s) finished as %s: %d/%d completed, %d failed, %d pending, %d batches in %s",
		s.SessionID, s.Kind, s.Scope, s.Status, s.Completed, s.Total, s.Failed, s.Pending, s.BatchesRun, s.Elapsed.Round(1e9))
	if s.Stats != nil && s.Stats.Total() > 0 {
		fmt.Fprintf(&b, " [%s]", s.Stats)
	}
	if s.AbortReason != "" {
		fmt.Fprintf(&b, " reason: %s", s.AbortReason)
	}
	return b.String()
}

var _ ports.Notifier = (*LoggingNotifier)(nil)
