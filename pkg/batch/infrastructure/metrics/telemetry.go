package metrics

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tigerroll/matchday/pkg/batch/core/config"
	logger "github.com/tigerroll/matchday/pkg/batch/support/util/logger"
)

// ServiceName identifies this process in exported telemetry.
const ServiceName = "matchday"

var log = logger.For("Telemetry")

// Telemetry holds the OTLP providers. A nil provider means the signal is not exported.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
}

// Shutdown flushes and stops both providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetupTelemetry builds OTLP providers for the endpoints configured in cfg.
func SetupTelemetry(ctx context.Context, cfg config.OtlpConfig) (*Telemetry, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	t := &Telemetry{}
	if !cfg.Traces.Enabled() && !cfg.Metrics.Enabled() {
		return t, nil
	}

	r, err := newResource()
	if err != nil {
		return nil, err
	}

	if cfg.Traces.Enabled() {
		exporter, err := otlpTraceExporter(ctx, cfg.Traces)
		if err != nil {
			return nil, err
		}
		t.TracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(r),
		)
	}

	if cfg.Metrics.Enabled() {
		exporter, err := otlpMetricExporter(ctx, cfg.Metrics)
		if err != nil {
			_ = t.Shutdown(context.Background())
			return nil, err
		}
		t.MeterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(15*time.Second))),
			sdkmetric.WithResource(r),
		)
	}
	return t, nil
}

func newResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", ServiceName)),
	)
}

func otlpTraceExporter(ctx context.Context, c config.OtlpEndpointConfig) (sdktrace.SpanExporter, error) {
	if c.GrpcEndpoint != "" {
		log.Infof("trace exporter initialized: type=grpc endpoint=%s", c.GrpcEndpoint)
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(c.GrpcEndpoint))
	}
	log.Infof("trace exporter initialized: type=http endpoint=%s", c.HttpEndpoint)
	return otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(c.HttpEndpoint))
}

func otlpMetricExporter(ctx context.Context, c config.OtlpEndpointConfig) (sdkmetric.Exporter, error) {
	if c.GrpcEndpoint != "" {
		log.Infof("metric exporter initialized: type=grpc endpoint=%s", c.GrpcEndpoint)
		return otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpointURL(c.GrpcEndpoint))
	}
	log.Infof("metric exporter initialized: type=http endpoint=%s", c.HttpEndpoint)
	return otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(c.HttpEndpoint))
}
