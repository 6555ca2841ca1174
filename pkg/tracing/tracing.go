// Package tracing wires the OpenTelemetry SDK for the collector binaries.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultServiceName = "coinpulse"
	defaultEndpoint    = "localhost:4317"
)

// Version is stamped into the trace resource. Override with -ldflags.
var Version = "dev"

var newTraceExporter = func(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
}

// settings is the tracing configuration read from the environment.
type settings struct {
	enabled     bool
	endpoint    string
	serviceName string
	sampleRatio float64
}

func loadSettings() (settings, error) {
	s := settings{
		enabled:     os.Getenv("TRACING_ENABLED") != "false",
		endpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		serviceName: strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME")),
		sampleRatio: 1,
	}
	if s.endpoint == "" {
		s.endpoint = defaultEndpoint
	}
	if s.serviceName == "" {
		s.serviceName = defaultServiceName
	}
	if raw := strings.TrimSpace(os.Getenv("TRACING_SAMPLE_RATIO")); raw != "" {
		ratio, err := strconv.ParseFloat(raw, 64)
		if err != nil || ratio < 0 || ratio > 1 {
			return settings{}, fmt.Errorf("invalid TRACING_SAMPLE_RATIO %q: want a number in [0,1]", raw)
		}
		s.sampleRatio = ratio
	}
	return s, nil
}

// InitTracer installs a global tracer provider and returns it with the
// service tracer. With TRACING_ENABLED=false spans stay in-process.
func InitTracer(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
	s, err := loadSettings()
	if err != nil {
		return nil, nil, err
	}

	if !s.enabled {
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, tp.Tracer(s.serviceName), nil
	}

	exporter, err := newTraceExporter(ctx, s.endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(s.serviceName),
			semconv.ServiceVersion(Version),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("build trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.sampleRatio))),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, tp.Tracer(s.serviceName), nil
}
