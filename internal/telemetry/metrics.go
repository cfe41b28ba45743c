// Package telemetry provides OpenTelemetry instrumentation for status sync.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter.
const SyncMetricsMeterName = "github.com/Avimitin/bili-live-notify-bot/sync"

// Pass outcomes recorded on the duration histogram.
const (
	OutcomeCompleted   = "completed"
	OutcomeInterrupted = "interrupted"
	OutcomeFailed      = "failed"
)

// SyncMetrics holds the OpenTelemetry instruments for sync passes.
type SyncMetrics struct {
	passDuration   metric.Float64Histogram
	roomsChanged   metric.Int64Counter
	batchFailures  metric.Int64Counter
	decodeFailures metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	passDuration, err := meter.Float64Histogram(
		"live_sync_pass_duration_seconds",
		metric.WithDescription("Duration of status sync passes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	roomsChanged, err := meter.Int64Counter(
		"live_sync_rooms_changed_total",
		metric.WithDescription("Rooms whose persisted status changed"),
		metric.WithUnit("{room}"),
	)
	if err != nil {
		return nil, err
	}

	batchFailures, err := meter.Int64Counter(
		"live_sync_batch_failures_total",
		metric.WithDescription("Status batches whose remote fetch failed"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, err
	}

	decodeFailures, err := meter.Int64Counter(
		"live_sync_decode_failures_total",
		metric.WithDescription("Rooms whose remote status code could not be decoded"),
		metric.WithUnit("{room}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		passDuration:   passDuration,
		roomsChanged:   roomsChanged,
		batchFailures:  batchFailures,
		decodeFailures: decodeFailures,
	}, nil
}

// RecordPass records one finished pass.
func (m *SyncMetrics) RecordPass(ctx context.Context, duration time.Duration, outcome string, changed, batchFailures, decodeFailures int) {
	if m == nil {
		return
	}

	m.passDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
	m.roomsChanged.Add(ctx, int64(changed))
	m.batchFailures.Add(ctx, int64(batchFailures))
	m.decodeFailures.Add(ctx, int64(decodeFailures))
}
