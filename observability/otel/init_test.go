package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.Error(t, err)
}

func TestInitWithoutSignalsKeepsGlobals(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Init(context.Background(), Config{ServiceName: "horus-gateway"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
	require.Equal(t, before, otel.GetTracerProvider())
}

func TestInitInstallsProviders(t *testing.T) {
	tracers, meters := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tracers)
		otel.SetMeterProvider(meters)
	})

	// Exporters connect lazily, so no collector is needed to build them.
	shutdown, err := Init(context.Background(), Config{
		ServiceName: "horus-gateway",
		Environment: "test",
		Endpoint:    "127.0.0.1:4318",
		Insecure:    true,
		Headers:     map[string]string{"x-tenant": "horus"},
		Traces:      true,
		Metrics:     true,
	})
	require.NoError(t, err)
	require.IsType(t, &sdktrace.TracerProvider{}, otel.GetTracerProvider())
	require.IsType(t, &sdkmetric.MeterProvider{}, otel.GetMeterProvider())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Nothing was recorded; shutdown must not hang on an absent collector.
	_ = shutdown(ctx)
}

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" authorization = Bearer abc ,bad, =x,tenant=horus,")
	require.Equal(t, map[string]string{"authorization": "Bearer abc", "tenant": "horus"}, got)
	require.Empty(t, ParseHeaders(""))
}
