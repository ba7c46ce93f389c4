package sofascore

import (
	"time"

	"go.uber.org/fx"

	port "github.com/tigerroll/matchday/pkg/batch/core/application/port"
	config "github.com/tigerroll/matchday/pkg/batch/core/config"
	"github.com/tigerroll/matchday/pkg/batch/infrastructure/metrics"
)

// ClientParams defines the dependencies of the Fx-provided Client.
type ClientParams struct {
	fx.In
	Cfg       *config.Config
	Telemetry *metrics.Telemetry `optional:"true"`
}

// NewClientFromParams builds the Client from configuration, tracing requests when an
// OTLP trace exporter is configured.
func NewClientFromParams(p ClientParams) *Client {
	loc, err := time.LoadLocation(p.Cfg.Matchday.System.Timezone)
	if err != nil {
		log.Warnf("Unknown timezone %q, using UTC: %v", p.Cfg.Matchday.System.Timezone, err)
		loc = time.UTC
	}
	opts := []Option{WithLocation(loc)}
	if p.Telemetry != nil && p.Telemetry.TracerProvider != nil {
		opts = append(opts, WithTracerProvider(p.Telemetry.TracerProvider))
	}
	return NewClient(p.Cfg.Matchday.Source, p.Cfg.Matchday.Collector.Batch.RequestTimeout(), opts...)
}

// Module provides the Sofascore client as the port.SourceFetcher.
var Module = fx.Provide(
	NewClientFromParams,
	func(c *Client) port.SourceFetcher { return c },
)
