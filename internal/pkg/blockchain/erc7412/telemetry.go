// telemetry.go provides OpenTelemetry instrumentation for the engine:
//   - erc7412.engine.attempts.total: Counter of forwarder attempts by operation/outcome
//   - erc7412.engine.fulfillments.total: Counter of fulfillment calls inserted
//   - erc7412.engine.price_updates.total: Counter of price updates fetched
//   - erc7412.engine.batch.size: Histogram of submitted batch sizes
//   - erc7412.engine.operation.duration: Histogram of end-to-end operation latency
package erc7412

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/archon-research/snx-sdk/internal/pkg/blockchain/erc7412"

// Telemetry provides OpenTelemetry metrics and tracing for the Engine.
type Telemetry struct {
	tracer trace.Tracer

	attemptsTotal     metric.Int64Counter
	fulfillmentsTotal metric.Int64Counter
	updatesTotal      metric.Int64Counter
	batchSize         metric.Int64Histogram
	duration          metric.Float64Histogram
}

// NewTelemetry uses the global tracer and meter providers.
func NewTelemetry() (*Telemetry, error) {
	return NewTelemetryWithProviders(otel.GetTracerProvider(), otel.GetMeterProvider())
}

func NewTelemetryWithProviders(tp trace.TracerProvider, mp metric.MeterProvider) (*Telemetry, error) {
	meter := mp.Meter(instrumentationName)
	t := &Telemetry{tracer: tp.Tracer(instrumentationName)}

	var err error
	t.attemptsTotal, err = meter.Int64Counter(
		"erc7412.engine.attempts.total",
		metric.WithDescription("Total number of forwarder attempts"),
	)
	if err != nil {
		return nil, err
	}

	t.fulfillmentsTotal, err = meter.Int64Counter(
		"erc7412.engine.fulfillments.total",
		metric.WithDescription("Total number of oracle fulfillment calls inserted"),
	)
	if err != nil {
		return nil, err
	}

	t.updatesTotal, err = meter.Int64Counter(
		"erc7412.engine.price_updates.total",
		metric.WithDescription("Total number of price updates fetched for fulfillment"),
	)
	if err != nil {
		return nil, err
	}

	t.batchSize, err = meter.Int64Histogram(
		"erc7412.engine.batch.size",
		metric.WithDescription("Number of calls in each submitted batch"),
	)
	if err != nil {
		return nil, err
	}

	t.duration, err = meter.Float64Histogram(
		"erc7412.engine.operation.duration",
		metric.WithDescription("Duration of engine operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return t, nil
}

// noopTelemetry backs engines built without telemetry.
func noopTelemetry() *Telemetry {
	t, _ := NewTelemetryWithProviders(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	return t
}

// StartSpan starts a span for one engine operation.
func (t *Telemetry) StartSpan(ctx context.Context, operation, method string, numLogical int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "erc7412."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("erc7412.operation", operation),
			attribute.String("contract.method", method),
			attribute.Int("erc7412.logical_calls", numLogical),
		),
	)
}

// RecordAttempt records one forwarder round trip and the size of its batch.
func (t *Telemetry) RecordAttempt(ctx context.Context, operation string, size int, outcome string) {
	attrs := metric.WithAttributes(
		attribute.String("erc7412.operation", operation),
		attribute.String("outcome", outcome),
	)
	t.attemptsTotal.Add(ctx, 1, attrs)
	t.batchSize.Record(ctx, int64(size), metric.WithAttributes(attribute.String("erc7412.operation", operation)))
}

// RecordFulfillment records an inserted fulfillment call and its update count.
func (t *Telemetry) RecordFulfillment(ctx context.Context, updateType uint8, updates int) {
	attrs := metric.WithAttributes(attribute.Int("erc7412.update_type", int(updateType)))
	t.fulfillmentsTotal.Add(ctx, 1, attrs)
	t.updatesTotal.Add(ctx, int64(updates), attrs)
}

// EndOperation records the operation duration and closes its span.
func (t *Telemetry) EndOperation(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	t.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("erc7412.operation", operation),
		attribute.String("status", status),
	))
	span.End()
}
