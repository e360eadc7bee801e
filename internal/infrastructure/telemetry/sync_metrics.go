package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Metric attribute keys
const (
	AttrMethod = attribute.Key("method")
	AttrMode   = attribute.Key("mode")
	AttrStatus = attribute.Key("status")
)

// runDurationBuckets spans a quick incremental run up to a full catalog
// walk, in seconds
var runDurationBuckets = []float64{1, 5, 15, 60, 300, 900, 3600}

// SyncMetrics records sync engine activity
type SyncMetrics struct {
	logger *zap.Logger

	pagesFetched     metric.Int64Counter
	recordsProjected metric.Int64Counter
	fieldWrites      metric.Int64Counter
	runFailures      metric.Int64Counter
	runDuration      metric.Float64Histogram
}

// SyncMetricsConfig holds configuration for sync metrics
type SyncMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// ErrMeterNil is returned when meter is nil
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// NewSyncMetrics creates the sync instruments on cfg.Meter
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{logger: logger}
	counters := []struct {
		dst              *metric.Int64Counter
		name, desc, unit string
	}{
		{&sm.pagesFetched, "pimsync_pages_fetched_total", "Total number of PIM pages fetched", "{pages}"},
		{&sm.recordsProjected, "pimsync_records_projected_total", "Total number of records projected and written", "{records}"},
		{&sm.fieldWrites, "pimsync_field_writes_total", "Total number of destination field writes", "{writes}"},
		{&sm.runFailures, "pimsync_run_failures_total", "Total number of sync runs that did not succeed", "{runs}"},
	}
	for _, c := range counters {
		counter, err := cfg.Meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}

	var err error
	sm.runDuration, err = cfg.Meter.Float64Histogram("pimsync_run_duration_seconds",
		metric.WithDescription("Duration of sync runs"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(runDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram pimsync_run_duration_seconds: %w", err)
	}
	return sm, nil
}

// RecordPage counts one fetched page
func (m *SyncMetrics) RecordPage(ctx context.Context, method string) {
	if m == nil {
		return
	}
	m.pagesFetched.Add(ctx, 1, metric.WithAttributes(AttrMethod.String(method)))
}

// RecordProjected counts one projected record and its field writes
func (m *SyncMetrics) RecordProjected(ctx context.Context, mode string, fields int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(AttrMode.String(mode))
	m.recordsProjected.Add(ctx, 1, attrs)
	m.fieldWrites.Add(ctx, int64(fields), attrs)
}

// RecordRun records the outcome of a finished run
func (m *SyncMetrics) RecordRun(ctx context.Context, mode, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(AttrMode.String(mode), AttrStatus.String(status))
	m.runDuration.Record(ctx, d.Seconds(), attrs)
	if status != "SUCCESS" {
		m.runFailures.Add(ctx, 1, attrs)
		m.logger.Debug("Sync run failure recorded",
			zap.String("mode", mode),
			zap.String("status", status),
		)
	}
}
