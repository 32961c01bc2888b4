package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// memoryMetricExporter keeps exported batches in memory.
type memoryMetricExporter struct {
	mu      sync.Mutex
	batches int
}

func (e *memoryMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (e *memoryMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *memoryMetricExporter) Export(context.Context, *metricdata.ResourceMetrics) error {
	e.mu.Lock()
	e.batches++
	e.mu.Unlock()
	return nil
}

func (e *memoryMetricExporter) ForceFlush(context.Context) error { return nil }
func (e *memoryMetricExporter) Shutdown(context.Context) error   { return nil }

func (e *memoryMetricExporter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.batches
}

func TestNew_DisabledTelemetry(t *testing.T) {
	tel, err := New(context.Background(), NewDefaultConfig())
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())

	// Falls back to the global providers.
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.NoError(t, tel.ForceFlush(context.Background()))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	_, err := New(context.Background(), cfg)
	assert.ErrorContains(t, err, "invalid telemetry config")
}

func TestNew_EnabledWithExporters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true

	spans := tracetest.NewInMemoryExporter()
	metrics := &memoryMetricExporter{}
	tel, err := New(context.Background(), cfg, WithExporters(spans, metrics))
	require.NoError(t, err)

	assert.True(t, tel.IsEnabled())
	assert.False(t, tel.Health().Degraded)

	_, span := tel.Tracer("test").Start(context.Background(), "reconcile.Reconcile")
	span.End()
	counter, err := tel.Meter("test").Int64Counter("esgmetrics.test")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	require.NoError(t, tel.ForceFlush(context.Background()))
	require.Len(t, spans.GetSpans(), 1)
	assert.Positive(t, metrics.count())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tel.Shutdown(ctx))
	assert.False(t, tel.Health().Healthy)
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.NotPanics(t, func() {
		assert.NotNil(t, tel.Tracer("test"))
		assert.NotNil(t, tel.Meter("test"))
		assert.NoError(t, tel.Shutdown(context.Background()))
		assert.NoError(t, tel.ForceFlush(context.Background()))
		assert.False(t, tel.IsEnabled())
		assert.Equal(t, HealthStatus{Healthy: false, Degraded: true}, tel.Health())
	})
}

func TestTelemetry_Degraded(t *testing.T) {
	tel := &Telemetry{config: NewDefaultConfig()}
	tel.healthy.Store(true)

	tel.setDegraded("meter provider failed: %v", "boom")

	h := tel.Health()
	assert.True(t, h.Healthy)
	assert.True(t, h.Degraded)
	assert.Equal(t, []string{"meter provider failed: boom"}, h.Reasons)
}

func TestTestTelemetry_Spans(t *testing.T) {
	tt := NewTestTelemetry()
	tracer := tt.Tracer("test")

	_, span := tracer.Start(context.Background(), "sync")
	span.SetAttributes(
		attribute.String("tenant.id", "acme"),
		attribute.Int64("sync.created", 2),
		attribute.Float64("ratio", 0.5),
		attribute.Bool("clear_local_storage", true),
	)
	span.End()

	_, other := tracer.Start(context.Background(), "other")
	other.End()

	assert.Len(t, tt.Spans(), 2)
	tt.AssertSpanExists(t, "sync")
	tt.AssertSpanExists(t, "other")
	tt.AssertSpanAttribute(t, "sync", "tenant.id", "acme")
	tt.AssertSpanAttribute(t, "sync", "sync.created", int64(2))
	tt.AssertSpanAttribute(t, "sync", "ratio", 0.5)
	tt.AssertSpanAttribute(t, "sync", "clear_local_storage", true)
	assert.Nil(t, tt.SpanByName("missing"))
}

func TestTestTelemetry_Collect(t *testing.T) {
	tt := NewTestTelemetry()

	counter, err := tt.Meter("test").Int64Counter("esgmetrics.test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
	counter.Add(context.Background(), 2)

	total, err := tt.Int64Sum(context.Background(), "esgmetrics.test.counter")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	require.NoError(t, tt.Shutdown(context.Background()))
	assert.False(t, tt.Health().Healthy)
}
