// Package tracing installs the OpenTelemetry provider and starts the spans
// the client emits: one per backend call, one per poll and one per facade
// request.
package tracing

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName is reported when the config leaves it empty.
const DefaultServiceName = "churnchurnchurn"

const instrumentation = "github.com/sacrosaunt/churnchurnchurn"

// Config holds tracing configuration.
type Config struct {
	Enabled     bool
	Endpoint    string // Jaeger collector, e.g. "http://localhost:14268/api/traces"
	ServiceName string
	Version     string
	Environment string
	// SampleRatio is the fraction of root spans kept. Zero keeps all.
	SampleRatio float64
}

// InitTracing installs a batching Jaeger provider. With tracing disabled the
// global no-op provider stays in place and spans cost nothing.
func InitTracing(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
	if err != nil {
		return fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	sampler := tracesdk.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = tracesdk.ParentBased(tracesdk.TraceIDRatioBased(cfg.SampleRatio))
	}

	otel.SetTracerProvider(tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(sampler),
	))
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return nil
}

func tracer() trace.Tracer {
	return otel.Tracer(instrumentation)
}

// StartBackendCall starts a client span for one backend API operation and
// injects the trace context into header.
func StartBackendCall(ctx context.Context, op, method, endpoint string, header http.Header) (context.Context, trace.Span) {
	ctx, span := tracer().Start(ctx, "backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("backend.endpoint", endpoint),
		),
	)
	if header != nil {
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
	}
	return ctx, span
}

// StartPoll starts the span covering one reconciliation poll.
func StartPoll(ctx context.Context) (context.Context, trace.Span) {
	return tracer().Start(ctx, "reconcile.poll")
}

// StartRequest starts a server span for an incoming facade request,
// continuing any trace the caller propagated.
func StartRequest(r *http.Request) (context.Context, trace.Span) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	return tracer().Start(ctx, r.Method+" "+r.URL.Path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.RequestURI()),
			attribute.String("http.user_agent", r.UserAgent()),
		),
	)
}

// Fail records err on span and marks it failed.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetStatusCode records an HTTP status; 5xx marks the span failed.
func SetStatusCode(span trace.Span, status int) {
	span.SetAttributes(attribute.Int("http.status_code", status))
	if status >= 500 {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}

// Shutdown flushes and stops the SDK tracer provider, if one is installed.
func Shutdown(ctx context.Context) error {
	if tp, ok := otel.GetTracerProvider().(*tracesdk.TracerProvider); ok {
		return tp.Shutdown(ctx)
	}
	return nil
}
