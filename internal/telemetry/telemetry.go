// Package telemetry provides OpenTelemetry metrics for the Coordinator and
// Daemon, adapted from the teacher's internal/telemetry package. Unlike the
// teacher, which exports both traces and metrics, rift carries metrics
// only: spec.md scopes distributed tracing and dashboards out, but ambient
// observability (structured logs, metrics) is carried regardless of
// Non-goals, and a counter/histogram surface is cheap to keep wired for the
// broadcast queue depths and checkpoint latencies the Coordinator produces.
//
// Telemetry is disabled by default (zero runtime overhead when off).
//
// # Configuration
//
//	RIFT_OTEL_ENABLED=true             enable metrics (default: off)
//	RIFT_OTEL_STDOUT=true              write metrics to stdout (dev mode)
//	OTEL_EXPORTER_OTLP_ENDPOINT=...    OTLP/HTTP endpoint (e.g. localhost:4318)
//	OTEL_SERVICE_NAME=...              override service name
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const instrumentationScope = "github.com/riftsync/rift"

var shutdownFn func(context.Context) error

// Enabled reports whether metrics collection is active.
func Enabled() bool {
	return os.Getenv("RIFT_OTEL_ENABLED") == "true"
}

// Init configures the global MeterProvider. When RIFT_OTEL_ENABLED is not
// "true" this installs a no-op provider and returns immediately.
func Init(ctx context.Context, serviceName, version string) error {
	if !Enabled() {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	mp, err := buildMetricProvider(ctx, res)
	if err != nil {
		return fmt.Errorf("telemetry: metric provider: %w", err)
	}
	otel.SetMeterProvider(mp)
	shutdownFn = mp.Shutdown

	return nil
}

func buildMetricProvider(ctx context.Context, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if os.Getenv("RIFT_OTEL_STDOUT") == "true" {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(15*time.Second)),
		))
	}

	if endpoint := firstNonEmpty(
		os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"),
		os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	); endpoint != "" {
		exp, err := buildOTLPMetricExporter(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second)),
		))
	}

	return sdkmetric.NewMeterProvider(opts...), nil
}

// Meter returns a meter with the given instrumentation name (or the global scope).
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes pending metrics and shuts down the provider. Should be
// deferred around each binary's main with a short-lived context.
func Shutdown(ctx context.Context) {
	if shutdownFn != nil {
		_ = shutdownFn(ctx)
		shutdownFn = nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
