package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitMeterProvider(t *testing.T) {
	cfg := Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
	}

	mp, err := InitMeterProvider(cfg)
	require.NoError(t, err, "Should initialize meter provider without error")
	require.NotNil(t, mp, "Meter provider should not be nil")
	require.NotNil(t, mp.Provider(), "Provider should not be nil")

	metrics, err := NewMappingMetrics(mp.Provider())
	require.NoError(t, err)
	metrics.RecordEntityBuilt(context.Background(), "shop.Order", nil)

	rec := httptest.NewRecorder()
	mp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "relmap_entities_built")

	// Clean up
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	err = mp.Shutdown(context.Background(), logger)
	assert.NoError(t, err, "Should shutdown without error")
}

func TestMappingMetricsRecording(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewMappingMetrics(provider)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordCacheLookup(ctx, CacheAggregatePath, true)
	metrics.RecordCacheLookup(ctx, CacheAggregatePath, false)
	metrics.RecordCacheLookup(ctx, CacheEntity, false)
	metrics.RecordEntityBuilt(ctx, "shop.Order", nil)
	metrics.RecordEntityBuilt(ctx, "shop.Broken", errors.New("bad tag"))
	metrics.RecordEvaluation(ctx, "table", nil)
	metrics.RecordPathLength(ctx, 2)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	var histogramCount uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					histogramCount += dp.Count
				}
			}
		}
	}

	assert.Equal(t, int64(3), sums["relmap.cache.lookups"])
	assert.Equal(t, int64(1), sums["relmap.entities.built"])
	assert.Equal(t, int64(1), sums["relmap.entities.failed"])
	assert.Equal(t, int64(1), sums["relmap.expressions.evaluated"])
	assert.Equal(t, uint64(1), histogramCount)
}

func TestNilMappingMetrics(t *testing.T) {
	var metrics *MappingMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		metrics.RecordCacheLookup(ctx, CacheEntity, true)
		metrics.RecordEntityBuilt(ctx, "x", nil)
		metrics.RecordEvaluation(ctx, "schema", nil)
		metrics.RecordPathLength(ctx, 1)
	})
}

func TestSpanHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	_, span := StartSpan(context.Background(), "relmap/test", "mapping.build_entity",
		attribute.String("type", "shop.Order"),
	)
	RecordSpanError(span, nil)
	RecordSpanError(span, errors.New("boom"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "mapping.build_entity", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String("type", "shop.Order"))
}
