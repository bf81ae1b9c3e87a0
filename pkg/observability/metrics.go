package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics builds the pipeline instruments on a Prometheus-backed
// meter provider. The exporter registers with the default Prometheus
// registry, so the HTTP transport's /metrics endpoint picks the
// instruments up without extra wiring.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter(cfg.Namespace)

	ingestActions, err := meter.Int64Counter(
		cfg.Namespace+"_ingest_actions_total",
		metric.WithDescription("Ingest decisions by action and duplicate level"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest actions counter: %w", err)
	}

	embedCalls, err := meter.Int64Counter(
		cfg.Namespace+"_embedding_calls_total",
		metric.WithDescription("Total embedding calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding calls counter: %w", err)
	}

	embedDuration, err := meter.Float64Histogram(
		cfg.Namespace+"_embedding_duration_seconds",
		metric.WithDescription("Embedding call duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding duration histogram: %w", err)
	}

	storeDuration, err := meter.Float64Histogram(
		cfg.Namespace+"_store_call_duration_seconds",
		metric.WithDescription("Vector store call duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store duration histogram: %w", err)
	}

	scrollPages, err := meter.Int64Counter(
		cfg.Namespace+"_scroll_pages_total",
		metric.WithDescription("Scroll pages fetched during filtered operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scroll pages counter: %w", err)
	}

	bulkDeleted, err := meter.Int64Counter(
		cfg.Namespace+"_bulk_deleted_total",
		metric.WithDescription("Points removed by delete-by-filter"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk deleted counter: %w", err)
	}

	httpDuration, err := meter.Float64Histogram(
		cfg.Namespace+"_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	return NewPrometheusMetrics(
		ingestActions,
		embedCalls,
		embedDuration,
		storeDuration,
		scrollPages,
		bulkDeleted,
		httpDuration,
	), nil
}
