// Package otel provides OpenTelemetry integration for shelfsync gateway
// calls: one span and a set of counters/histograms per completed call.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shelf-labs/shelfsync/api"
)

// CallObserver translates gateway call results into OpenTelemetry spans and
// metrics. It implements api.Observer.
type CallObserver struct {
	tracer   trace.Tracer
	calls    metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// NewCallObserver creates a CallObserver that uses the given meter and
// tracer for its instruments and spans.
func NewCallObserver(meter metric.Meter, tracer trace.Tracer) (*CallObserver, error) {
	calls, err := meter.Int64Counter("shelfsync.api.calls",
		metric.WithDescription("Number of gateway calls"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("shelfsync.api.failures",
		metric.WithDescription("Number of failed gateway calls"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("shelfsync.api.duration",
		metric.WithDescription("Duration of gateway calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &CallObserver{
		tracer:   tracer,
		calls:    calls,
		failures: failures,
		duration: duration,
	}, nil
}

// ObserveCall records one completed gateway call.
func (o *CallObserver) ObserveCall(ctx context.Context, call api.CallInfo) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", call.Method),
		attribute.String("http.path", call.Path),
		attribute.Int("http.status", call.Status),
	}

	_, span := o.tracer.Start(ctx, call.Method+" "+call.Path,
		trace.WithAttributes(attrs...),
	)
	if call.Err != nil {
		span.RecordError(call.Err)
		span.SetStatus(codes.Error, call.Err.Error())
	}
	span.End()

	metricAttrs := metric.WithAttributes(attrs...)
	o.calls.Add(ctx, 1, metricAttrs)
	o.duration.Record(ctx, call.Elapsed.Seconds(), metricAttrs)
	if call.Err != nil {
		o.failures.Add(ctx, 1, metricAttrs)
	}
}

// Compile-time interface check.
var _ api.Observer = (*CallObserver)(nil)
