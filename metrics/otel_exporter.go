package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector

	// OTel meters and instruments
	meter              metric.Meter
	endpointTotalGauge metric.Int64ObservableGauge
	ingestWindowGauge  metric.Int64ObservableGauge
	ingestCounter      metric.Int64Counter
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	// Create Prometheus exporter
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	// Create meter with service info
	meter := meterProvider.Meter(
		"webhook-capture",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		meter:         meter,
	}

	// Register metrics instruments
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	// Registered endpoints gauge, observed live from storage
	oe.endpointTotalGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.endpoints.total",
		metric.WithDescription("Number of registered webhook endpoints"),
		metric.WithUnit("{endpoints}"),
		metric.WithInt64Callback(oe.observeEndpointTotal),
	)
	if err != nil {
		return fmt.Errorf("creating endpoint total gauge: %w", err)
	}

	// Trailing-24h ingestion gauge (per result)
	oe.ingestWindowGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.ingest.last24h",
		metric.WithDescription("Ingestion events in the trailing 24 hours"),
		metric.WithUnit("{payloads}"),
		metric.WithInt64Callback(oe.observeIngestCounts),
	)
	if err != nil {
		return fmt.Errorf("creating ingest window gauge: %w", err)
	}

	// Process-lifetime ingestion counter (per result), incremented by the
	// ingestion handler
	oe.ingestCounter, err = oe.meter.Int64Counter(
		"webhook.ingest.total",
		metric.WithDescription("Ingestion requests handled since process start"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return fmt.Errorf("creating ingest counter: %w", err)
	}

	return nil
}

// observeEndpointTotal is a callback that reports the endpoint count
func (oe *OTelExporter) observeEndpointTotal(ctx context.Context, observer metric.Int64Observer) error {
	total, err := oe.collector.GetEndpointTotal(ctx)
	if err != nil {
		return err
	}

	observer.Observe(total)
	return nil
}

// observeIngestCounts is a callback that reports trailing-window activity
func (oe *OTelExporter) observeIngestCounts(ctx context.Context, observer metric.Int64Observer) error {
	counts, err := oe.collector.GetIngestCounts(ctx)
	if err != nil {
		return err
	}

	observer.Observe(counts.Successes, metric.WithAttributes(
		attribute.String("ingest.result", "success"),
	))
	observer.Observe(counts.Failures, metric.WithAttributes(
		attribute.String("ingest.result", "failure"),
	))

	return nil
}

// RecordIngestSuccess counts one stored payload
func (oe *OTelExporter) RecordIngestSuccess(ctx context.Context) {
	oe.ingestCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("ingest.result", "success"),
	))
}

// RecordIngestFailure counts one rejected ingestion attempt
func (oe *OTelExporter) RecordIngestFailure(ctx context.Context) {
	oe.ingestCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("ingest.result", "failure"),
	))
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
