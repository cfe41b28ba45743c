package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Avimitin/bili-live-notify-bot/pkg/log"
)

const (
	// DefaultMetricsInterval is the default export interval.
	DefaultMetricsInterval = 60 * time.Second

	// DefaultEndpoint is the default OTLP/HTTP endpoint.
	DefaultEndpoint = "localhost:4318"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoint    string        `mapstructure:"endpoint"`
	Insecure    bool          `mapstructure:"insecure"`
	Interval    time.Duration `mapstructure:"interval"`
	ServiceName string        `mapstructure:"-"`
}

// ShutdownFunc flushes and stops a meter provider.
type ShutdownFunc func(context.Context) error

// NewMeterProvider creates a MeterProvider exporting over OTLP/HTTP.
// A no-op provider is returned when metrics are disabled.
func NewMeterProvider(ctx context.Context, cfg Config) (metric.MeterProvider, ShutdownFunc, error) {
	l := log.Ctx(ctx)

	if !cfg.Enabled {
		l.Info().Msg("metrics disabled, using no-op meter provider")
		return noop.NewMeterProvider(), func(context.Context) error { return nil }, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultMetricsInterval
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp)

	l.Info().Str("endpoint", endpoint).Bool("insecure", cfg.Insecure).Msg("metrics initialized")
	return mp, mp.Shutdown, nil
}
