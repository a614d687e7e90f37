package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHeaders(t *testing.T) {
	assert.Nil(t, parseHeaders(""))
	assert.Nil(t, parseHeaders("novalue,=x, ,"))
	assert.Equal(t,
		map[string]string{"authorization": "Bearer abc", "x-tenant": "ops=1"},
		parseHeaders(" authorization = Bearer abc ,x-tenant=ops=1,broken"),
	)
}

func TestTracingConfigFromEnvClampsRatio(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLER_RATIO", "4")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	tc := TracingConfigFromEnv()
	assert.True(t, tc.Enabled)
	assert.Equal(t, 1.0, tc.SampleRatio)
	assert.Equal(t, "collector:4318", tc.Endpoint)
	assert.True(t, tc.Insecure)

	t.Setenv("OTEL_SAMPLER_RATIO", "-1")
	assert.Equal(t, 0.0, TracingConfigFromEnv().SampleRatio)
}

func TestNewTracerProviderWithStdoutExporter(t *testing.T) {
	tp, err := newTracerProvider(context.Background(), OtelConfig{Version: "test"}, TracingConfig{SampleRatio: 1})
	assert.NoError(t, err)
	_, span := tp.Tracer("test").Start(context.Background(), "probe")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestStartSpanWithoutProviderIsNoop(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsSampled())
}
