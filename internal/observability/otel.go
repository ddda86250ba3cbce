// Package observability wires OpenTelemetry metrics, tracing and log export.
// Metrics are exposed through the Prometheus exporter; traces and logs go to
// an OTLP collector over gRPC or HTTP.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const shutdownTimeout = 5 * time.Second

// Config holds OpenTelemetry configuration.
type Config struct {
	ServiceName      string
	ServiceVersion   string
	Environment      string
	TraceSampleRatio float64
	OTLP             OTLPExporterConfig
}

// serviceResource describes the running graphquery process. The default
// resource contributes host and SDK attributes.
func serviceResource(cfg Config) (*resource.Resource, error) {
	attrs := resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	)
	res, err := resource.Merge(resource.Default(), attrs)
	if err != nil {
		return nil, fmt.Errorf("build service resource: %w", err)
	}
	return res, nil
}

// MeterProvider owns the SDK meter provider that backs /metrics.
type MeterProvider struct {
	provider *metric.MeterProvider
	exporter *prometheus.Exporter
}

// InitMeterProvider installs a global meter provider read by the Prometheus
// exporter. Instruments registered afterwards land on the default registry.
func InitMeterProvider(cfg Config) (*MeterProvider, error) {
	res, err := serviceResource(cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}

	mp := &MeterProvider{
		provider: metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(exporter)),
		exporter: exporter,
	}
	otel.SetMeterProvider(mp.provider)
	return mp, nil
}

// Shutdown flushes and stops the meter provider.
func (mp *MeterProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	return shutdown(ctx, logger, "meter provider", mp.provider.Shutdown)
}

func shutdown(ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		logger.Error(name+" shutdown failed", slog.String("error", err.Error()))
		return err
	}
	logger.Debug(name + " stopped")
	return nil
}
