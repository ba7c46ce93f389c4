package metrics

import (
	"go.uber.org/fx"
)

// Module wraps the configured MetricRecorder so recording never blocks the request loop.
var Module = fx.Decorate(NewAsyncMetricRecorderWrapper)
