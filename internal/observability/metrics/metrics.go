package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	productionRecorded metric.Int64Counter
	shotIncrements     metric.Int64Counter
	thresholdCrossings metric.Int64Counter
	alertsRaised       metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp metric protocol %q", protocol)
	}
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "moldtrack"
	}
	meter := provider.Meter(name)

	productionRecorded, err := meter.Int64Counter("moldtrack_production_recorded_total")
	if err != nil {
		return nil, err
	}
	shotIncrements, err := meter.Int64Counter("moldtrack_shot_increments_total")
	if err != nil {
		return nil, err
	}
	thresholdCrossings, err := meter.Int64Counter("moldtrack_threshold_crossings_total")
	if err != nil {
		return nil, err
	}
	alertsRaised, err := meter.Int64Counter("moldtrack_alerts_raised_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		productionRecorded: productionRecorded,
		shotIncrements:     shotIncrements,
		thresholdCrossings: thresholdCrossings,
		alertsRaised:       alertsRaised,
	}, nil
}

// RecordProduction counts a committed recording and its shot increment.
func (m *Metrics) RecordProduction(ctx context.Context, shift string, increment int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("shift", strings.TrimSpace(shift)))
	m.productionRecorded.Add(ctx, 1, attrs)
	m.shotIncrements.Add(ctx, increment, attrs)
}

// RecordCrossing counts a detected milestone crossing.
func (m *Metrics) RecordCrossing(ctx context.Context, class string) {
	if m == nil {
		return
	}
	m.thresholdCrossings.Add(ctx, 1, metric.WithAttributes(attribute.String("class", class)))
}

// RecordAlert counts a raised alert.
func (m *Metrics) RecordAlert(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.alertsRaised.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
