package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ProviderConfig configures the OpenTelemetry SDK meter provider.
type ProviderConfig struct {
	// ServiceName is the service name reported in telemetry. Default: "mocaprec".
	ServiceName string

	// ServiceVersion is the service version reported in telemetry.
	ServiceVersion string
}

// InitProvider sets up a [sdkmetric.MeterProvider] backed by the Prometheus
// exporter and registers it globally, so the default Prometheus registry
// serves the recorder's metrics on /metrics.
//
// Returns a shutdown function that flushes the provider. Call it in a defer
// from main().
func InitProvider(ctx context.Context, cfg ProviderConfig) (shutdown func(context.Context) error, err error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "mocaprec"
	}

	// The SDK's default resource carries its own schema URL; schemaless
	// attributes merge with any version of it.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)
	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}
