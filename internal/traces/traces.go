// Package traces wires OpenTelemetry into moodguard: an OTLP/gRPC exporter
// with ratio sampling, W3C trace-context propagation for inbound requests, and
// span helpers shared by the risk and alert gate paths.
package traces

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "github.com/mbd888/moodguard"
	defaultServiceName = "moodguard"
)

// Config selects where spans go and how many are kept.
type Config struct {
	Endpoint    string  // OTLP/gRPC collector; empty disables export
	ServiceName string  // defaults to "moodguard"
	Version     string  // service.version
	Environment string  // deployment.environment
	SampleRatio float64 // fraction of new traces kept, 0..1
}

// Init installs the W3C propagator and, when cfg.Endpoint is set, a batching
// OTLP tracer provider. The returned func flushes pending spans.
func Init(ctx context.Context, cfg Config, logger *slog.Logger) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Endpoint == "" {
		logger.Info("span export disabled, set OTEL_EXPORTER_OTLP_ENDPOINT to enable")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := newProvider(cfg, res, sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)

	logger.Info("span export enabled",
		"endpoint", cfg.Endpoint,
		"environment", cfg.Environment,
		"sample_ratio", cfg.SampleRatio,
	)
	return tp.Shutdown, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if cfg.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Version))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

// newProvider builds the tracer provider. Sampling follows the caller's
// decision when a parent span arrived with the request.
func newProvider(cfg Config, res *resource.Resource, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts = append(opts,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(rootSampler(cfg.SampleRatio))),
	)
	return sdktrace.NewTracerProvider(opts...)
}

func rootSampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(ratio)
	}
}

// StartSpan starts an internal span on the moodguard tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// Fail marks span as failed with a short machine-readable reason, the same
// label used on the matching failure counter.
func Fail(span trace.Span, err error, reason string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	span.SetAttributes(attribute.String("moodguard.failure_reason", reason))
}

func UserID(id string) attribute.KeyValue {
	return attribute.String("moodguard.user_id", id)
}

func SessionID(id string) attribute.KeyValue {
	return attribute.String("moodguard.session_id", id)
}

func RiskLevel(level string) attribute.KeyValue {
	return attribute.String("moodguard.risk_level", level)
}

// Transitioned records whether a gate call moved the session to Shown.
func Transitioned(ok bool) attribute.KeyValue {
	return attribute.Bool("moodguard.gate.transitioned", ok)
}

func ResourceID(id string) attribute.KeyValue {
	return attribute.String("moodguard.counseling_resource_id", id)
}
