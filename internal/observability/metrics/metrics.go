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

// Metrics exposes application-level instruments for the aggregation engine.
type Metrics struct {
	sessionsReconstructed metric.Int64Counter
	metricsUpserted       metric.Int64Counter
	billingComputed       metric.Int64Counter
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
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "agendobot-metrics"
	}
	meter := provider.Meter(name)

	sessionsReconstructed, err := meter.Int64Counter("agendobot_sessions_reconstructed_total")
	if err != nil {
		return nil, err
	}
	metricsUpserted, err := meter.Int64Counter("agendobot_metric_records_upserted_total")
	if err != nil {
		return nil, err
	}
	billingComputed, err := meter.Int64Counter("agendobot_billing_records_computed_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		sessionsReconstructed: sessionsReconstructed,
		metricsUpserted:       metricsUpserted,
		billingComputed:       billingComputed,
	}, nil
}

// RecordSessionsReconstructed adds reconstructed session counts for a tenant run.
func (m *Metrics) RecordSessionsReconstructed(ctx context.Context, tenantID string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.sessionsReconstructed.Add(ctx, count, metric.WithAttributes(attribute.String("tenant_id", tenantID)))
}

// RecordMetricUpserts counts derived metric rows written.
func (m *Metrics) RecordMetricUpserts(ctx context.Context, scope string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.metricsUpserted.Add(ctx, count, metric.WithAttributes(attribute.String("scope", scope)))
}

// RecordBillingComputed counts billing records produced.
func (m *Metrics) RecordBillingComputed(ctx context.Context, tier string) {
	if m == nil {
		return
	}
	m.billingComputed.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", strings.TrimSpace(tier))))
}
