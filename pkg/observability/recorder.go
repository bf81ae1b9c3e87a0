package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics = NoopMetrics{}
	metricsMu     sync.RWMutex
)

// Metrics is what the pipeline records. Implementations must be safe
// for concurrent use and must never block the caller.
type Metrics interface {
	RecordIngestAction(ctx context.Context, action string, level int)
	RecordEmbedding(ctx context.Context, model string, duration time.Duration, err error)
	RecordStoreCall(ctx context.Context, op string, duration time.Duration, err error)
	RecordScrollPage(ctx context.Context, collection string)
	RecordBulkDelete(ctx context.Context, collection string, count int)
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
}

type PrometheusMetrics struct {
	ingestActions metric.Int64Counter
	embedCalls    metric.Int64Counter
	embedDuration metric.Float64Histogram
	storeDuration metric.Float64Histogram
	scrollPages   metric.Int64Counter
	bulkDeleted   metric.Int64Counter
	httpDuration  metric.Float64Histogram
}

func NewPrometheusMetrics(
	ingestActions metric.Int64Counter,
	embedCalls metric.Int64Counter,
	embedDuration metric.Float64Histogram,
	storeDuration metric.Float64Histogram,
	scrollPages metric.Int64Counter,
	bulkDeleted metric.Int64Counter,
	httpDuration metric.Float64Histogram,
) *PrometheusMetrics {
	return &PrometheusMetrics{
		ingestActions: ingestActions,
		embedCalls:    embedCalls,
		embedDuration: embedDuration,
		storeDuration: storeDuration,
		scrollPages:   scrollPages,
		bulkDeleted:   bulkDeleted,
		httpDuration:  httpDuration,
	}
}

func (m *PrometheusMetrics) RecordIngestAction(ctx context.Context, action string, level int) {
	if m == nil || m.ingestActions == nil {
		return
	}
	m.ingestActions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAction, action),
		attribute.Int(AttrLevel, level),
	))
}

func (m *PrometheusMetrics) RecordEmbedding(ctx context.Context, model string, duration time.Duration, err error) {
	if m == nil || m.embedCalls == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrModel, model),
		attribute.String(AttrStatus, statusOf(err)),
	}
	m.embedCalls.Add(ctx, 1, metric.WithAttributes(attrs...))
	if m.embedDuration != nil {
		m.embedDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordStoreCall(ctx context.Context, op string, duration time.Duration, err error) {
	if m == nil || m.storeDuration == nil {
		return
	}
	m.storeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrOp, op),
		attribute.String(AttrStatus, statusOf(err)),
	))
}

func (m *PrometheusMetrics) RecordScrollPage(ctx context.Context, collection string) {
	if m == nil || m.scrollPages == nil {
		return
	}
	m.scrollPages.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrCollection, collection),
	))
}

func (m *PrometheusMetrics) RecordBulkDelete(ctx context.Context, collection string, count int) {
	if m == nil || m.bulkDeleted == nil {
		return
	}
	m.bulkDeleted.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String(AttrCollection, collection),
	))
}

func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	))
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
