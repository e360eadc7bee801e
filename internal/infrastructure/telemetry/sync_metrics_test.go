package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/pimsync/backend/internal/infrastructure/telemetry"
)

func TestNewSyncMetrics(t *testing.T) {
	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:  noop.NewMeterProvider().Meter("test"),
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	require.NotNil(t, sm)
}

func TestNewSyncMetrics_NilMeter(t *testing.T) {
	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{})
	require.Error(t, err)
	assert.Nil(t, sm)
	assert.Equal(t, "NewSyncMetrics: meter cannot be nil", err.Error())
}

func TestSyncMetrics_NilReceiver(t *testing.T) {
	var sm *telemetry.SyncMetrics
	assert.NotPanics(t, func() {
		sm.RecordPage(context.Background(), "getProducts")
		sm.RecordProjected(context.Background(), "FULL", 3)
		sm.RecordRun(context.Background(), "FULL", "FAILED", time.Second)
	})
}

func TestSyncMetrics_Counters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{Meter: mp.Meter("test")})
	require.NoError(t, err)

	ctx := context.Background()
	sm.RecordPage(ctx, "getProducts")
	sm.RecordPage(ctx, "getProducts")
	sm.RecordProjected(ctx, "FULL", 4)
	sm.RecordProjected(ctx, "FULL", 3)
	sm.RecordRun(ctx, "FULL", "SUCCESS", time.Second)
	sm.RecordRun(ctx, "FULL", "PARTIAL", time.Second)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if data, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(2), sums["pimsync_pages_fetched_total"])
	assert.Equal(t, int64(2), sums["pimsync_records_projected_total"])
	assert.Equal(t, int64(7), sums["pimsync_field_writes_total"])
	assert.Equal(t, int64(1), sums["pimsync_run_failures_total"])
}
