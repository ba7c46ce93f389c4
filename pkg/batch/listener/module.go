package listener

import (
	"github.com/tigerroll/matchday/pkg/batch/listener/logging"
	"github.com/tigerroll/matchday/pkg/batch/listener/metrics"
	"github.com/tigerroll/matchday/pkg/batch/listener/notification"

	"go.uber.org/fx"
)

// Module aggregates the session listeners: notifiers and the async metric wrapper.
var Module = fx.Options(
	logging.Module,
	metrics.Module,
	notification.Module,
)
