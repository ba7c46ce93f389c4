package sofascore

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/tigerroll/matchday/internal/source/sofascore"

type requestSpanKey struct{}

// requestSpan returns the span started for this request; a request rejected before the
// tracing hook ran has none, and the caller's span must not be ended.
func requestSpan(ctx context.Context) (trace.Span, bool) {
	span, ok := ctx.Value(requestSpanKey{}).(trace.Span)
	return span, ok
}

// instrument starts a client span before each request and ends it on response or error.
func instrument(client *resty.Client, tracer trace.Tracer) {
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		ctx, span := tracer.Start(req.Context(), "http "+req.Method, trace.WithSpanKind(trace.SpanKindClient))
		req.SetContext(context.WithValue(ctx, requestSpanKey{}, span))
		return nil
	})
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		span, ok := requestSpan(res.Request.Context())
		if !ok {
			return nil
		}
		defer span.End()
		span.SetAttributes(
			attribute.String("http.method", res.Request.Method),
			attribute.String("http.url", res.Request.URL),
			attribute.Int("http.status_code", res.StatusCode()),
			attribute.String("http.user_agent", res.Request.Header.Get("User-Agent")),
		)
		if res.StatusCode() >= 400 {
			span.SetStatus(codes.Error, fmt.Sprintf("status %d", res.StatusCode()))
		}
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		span, ok := requestSpan(req.Context())
		if !ok {
			return
		}
		defer span.End()
		span.SetAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	})
}
