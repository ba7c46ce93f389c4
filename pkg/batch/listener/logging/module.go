package logging

import (
	"go.uber.org/fx"

	"github.com/tigerroll/matchday/pkg/batch/core/ports"
)

// Module adds the logging notifier to the "notifiers" group.
var Module = fx.Provide(fx.Annotate(
	NewLoggingNotifier,
	fx.As(new(ports.Notifier)),
	fx.ResultTags(`group:"notifiers"`),
))
