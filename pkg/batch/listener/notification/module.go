package notification

import (
	"os"

	"go.uber.org/fx"

	"github.com/tigerroll/matchday/pkg/batch/core/ports"
)

// Module adds the summary table notifier, writing to stdout, to the "notifiers" group.
var Module = fx.Provide(fx.Annotate(
	func() *SummaryNotifier { return NewSummaryNotifier(os.Stdout) },
	fx.As(new(ports.Notifier)),
	fx.ResultTags(`group:"notifiers"`),
))
