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
	eventsReceived  metric.Int64Counter
	eventsProcessed metric.Int64Counter
	eventsFailed    metric.Int64Counter
	reconciles      metric.Int64Counter
	transactions    metric.Int64Counter
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

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "communa"
	}
	meter := provider.Meter(name)

	eventsReceived, err := meter.Int64Counter("communa_webhook_events_received_total")
	if err != nil {
		return nil, err
	}
	eventsProcessed, err := meter.Int64Counter("communa_webhook_events_processed_total")
	if err != nil {
		return nil, err
	}
	eventsFailed, err := meter.Int64Counter("communa_webhook_events_failed_total")
	if err != nil {
		return nil, err
	}
	reconciles, err := meter.Int64Counter("communa_subscription_reconciles_total")
	if err != nil {
		return nil, err
	}
	transactions, err := meter.Int64Counter("communa_payment_transactions_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		eventsReceived:  eventsReceived,
		eventsProcessed: eventsProcessed,
		eventsFailed:    eventsFailed,
		reconciles:      reconciles,
		transactions:    transactions,
	}, nil
}

// RecordEventReceived increments received webhook event counts.
func (m *Metrics) RecordEventReceived(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.eventsReceived.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
	))
}

// RecordEventProcessed increments processed webhook event counts.
func (m *Metrics) RecordEventProcessed(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.eventsProcessed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
	))
}

// RecordEventFailed increments failed webhook event counts by failure class.
func (m *Metrics) RecordEventFailed(ctx context.Context, eventType string, permanent bool) {
	if m == nil {
		return
	}
	class := "transient"
	if permanent {
		class = "permanent"
	}
	m.eventsFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("class", class),
	))
}

// RecordReconcile increments subscription reconcile counts.
func (m *Metrics) RecordReconcile(ctx context.Context, scope string, change string) {
	if m == nil {
		return
	}
	m.reconciles.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", strings.TrimSpace(scope)),
		attribute.String("change", strings.TrimSpace(change)),
	))
}

// RecordTransaction increments recorded payment transaction counts.
func (m *Metrics) RecordTransaction(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.transactions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", strings.TrimSpace(status)),
	))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
