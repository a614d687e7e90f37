package observability

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/concierge-backend/internal/platform/envutil"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const tracerName = "github.com/yungbote/concierge-backend"

type OtelConfig struct {
	ServiceName string
	Environment string
	Version     string
}

// TracingConfig is the exporter side of tracing, read from OTEL_* variables.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Headers     map[string]string
	Insecure    bool
	SampleRatio float64
}

func TracingConfigFromEnv() TracingConfig {
	ratio := envutil.Float("OTEL_SAMPLER_RATIO", 0.1)
	switch {
	case ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}
	return TracingConfig{
		Enabled:     TracingEnabled(),
		Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Headers:     parseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")),
		Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
		SampleRatio: ratio,
	}
}

// TracingEnabled reports whether OTEL_ENABLED is set.
func TracingEnabled() bool {
	return envutil.Bool("OTEL_ENABLED", false)
}

var (
	otelOnce     sync.Once
	otelShutdown func(context.Context) error
)

// InitOTel installs the global tracer provider once per process. It returns
// nil when tracing is disabled; callers must check before calling shutdown.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	otelOnce.Do(func() {
		tc := TracingConfigFromEnv()
		if !tc.Enabled {
			return
		}
		if log == nil {
			log = logger.Nop()
		}
		tp, err := newTracerProvider(ctx, cfg, tc)
		if err != nil {
			log.Warn("Tracing disabled: provider init failed", "error", err)
			return
		}
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otelShutdown = tp.Shutdown
		exporter := "stdout"
		if tc.Endpoint != "" {
			exporter = "otlp"
		}
		log.Info("Tracing initialized", "service", serviceName(cfg), "exporter", exporter, "endpoint", tc.Endpoint, "sample_ratio", tc.SampleRatio)
	})
	return otelShutdown
}

func newTracerProvider(ctx context.Context, cfg OtelConfig, tc TracingConfig) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String(serviceName(cfg)),
		semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
		attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
	))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}
	exp, err := newExporter(ctx, tc)
	if err != nil {
		return nil, fmt.Errorf("otel exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tc.SampleRatio))),
		sdktrace.WithResource(res),
	), nil
}

// newExporter ships spans over OTLP/HTTP when an endpoint is configured and
// pretty-prints them to stdout otherwise.
func newExporter(ctx context.Context, tc TracingConfig) (sdktrace.SpanExporter, error) {
	if tc.Endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(tc.Endpoint)}
	if tc.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(tc.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(tc.Headers))
	}
	return otlptracehttp.New(ctx, opts...)
}

func serviceName(cfg OtelConfig) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	return "concierge-backend"
}

// parseHeaders reads comma separated key=value pairs. Malformed pairs are
// dropped.
func parseHeaders(raw string) map[string]string {
	var out map[string]string
	for _, pair := range strings.Split(raw, ",") {
		key, val, ok := strings.Cut(pair, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" || val == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[key] = val
	}
	return out
}

// StartSpan starts a span on the global tracer. With tracing disabled the
// span is a no-op.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
