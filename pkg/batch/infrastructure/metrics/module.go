package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/matchday/pkg/batch/core/config"
	metrics "github.com/tigerroll/matchday/pkg/batch/core/metrics"
)

// Module provides the Prometheus recorder, the OTLP telemetry providers,
// and the MetricRecorder and Tracer the collector uses.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
	fx.Provide(NewTelemetryLifecycle),
	fx.Provide(NewMetricRecorder),
	fx.Provide(NewTracer),
)

// ServerModule serves /metrics on metrics.listen_address while the application runs.
var ServerModule = fx.Invoke(registerMetricsServer)

// NewTelemetryLifecycle sets up OTLP exporters and flushes them on shutdown.
func NewTelemetryLifecycle(lc fx.Lifecycle, cfg *config.Config) (*Telemetry, error) {
	t, err := SetupTelemetry(context.Background(), cfg.Matchday.Metrics.Otlp)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return t.Shutdown(ctx)
		},
	})
	return t, nil
}

// NewMetricRecorder combines Prometheus with OTLP metrics when an endpoint is configured.
func NewMetricRecorder(prom *PrometheusRecorder, t *Telemetry) (metrics.MetricRecorder, error) {
	if t.MeterProvider == nil {
		return prom, nil
	}
	otelRecorder, err := NewOtelRecorder(t.MeterProvider)
	if err != nil {
		return nil, err
	}
	return CompositeRecorder{prom, otelRecorder}, nil
}

// NewTracer returns an OpenTelemetry tracer when traces are exported, a no-op tracer otherwise.
func NewTracer(t *Telemetry) metrics.Tracer {
	if t.TracerProvider == nil {
		return metrics.NewNoOpTracer()
	}
	return NewOpenTelemetryTracer(t.TracerProvider)
}

func registerMetricsServer(lc fx.Lifecycle, cfg *config.Config, prom *PrometheusRecorder) {
	addr := cfg.Matchday.Metrics.ListenAddress
	if addr == "" {
		return
	}
	server := NewServer(addr, prom.GetRegistry())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return server.Start() },
		OnStop:  server.Stop,
	})
}
