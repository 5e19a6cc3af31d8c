package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/archon-research/snx-sdk/internal/ports/outbound"
)

var _ outbound.MetricsRecorder = (*Metrics)(nil)

// Metrics implements outbound.MetricsRecorder using OpenTelemetry.
type Metrics struct {
	cacheLookups metric.Int64Counter
	fetchLatency metric.Float64Histogram
	feedsFetched metric.Int64Counter
}

// NewMetrics creates a recorder on the global meter provider.
func NewMetrics(meterName string) (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	lookups, err := meter.Int64Counter(
		"price_feed.cache.lookups_total",
		metric.WithDescription("Feed lookups against the price update cache, by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache lookups counter: %w", err)
	}

	latency, err := meter.Float64Histogram(
		"price_feed.fetch.duration_seconds",
		metric.WithDescription("Time taken to fetch price updates from the price service"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch duration histogram: %w", err)
	}

	feeds, err := meter.Int64Counter(
		"price_feed.fetch.feeds_total",
		metric.WithDescription("Feeds requested from the price service"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetched feeds counter: %w", err)
	}

	return &Metrics{
		cacheLookups: lookups,
		fetchLatency: latency,
		feedsFetched: feeds,
	}, nil
}

func (m *Metrics) RecordCacheLookup(ctx context.Context, hits, misses int) {
	if hits > 0 {
		m.cacheLookups.Add(ctx, int64(hits), metric.WithAttributes(attribute.String("result", "hit")))
	}
	if misses > 0 {
		m.cacheLookups.Add(ctx, int64(misses), metric.WithAttributes(attribute.String("result", "miss")))
	}
}

func (m *Metrics) RecordUpstreamFetch(ctx context.Context, feeds int, duration time.Duration, status string) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.fetchLatency.Record(ctx, duration.Seconds(), attrs)
	m.feedsFetched.Add(ctx, int64(feeds), attrs)
}
