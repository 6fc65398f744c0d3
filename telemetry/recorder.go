// Package telemetry defines the observation surface the caching layer emits
// into: named counters, gauges and timers plus optional trace spans. The
// core never talks to an exporter directly — it is handed a Recorder and
// stays agnostic about where observations land.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Recorder receives metric observations and trace spans from the cache
// layer. Implementations must be safe for concurrent use; all methods are
// called on hot paths and must never block or panic.
type Recorder interface {
	// Count adds delta to the named counter.
	Count(ctx context.Context, name string, delta int64, attrs ...attribute.KeyValue)
	// Gauge records the current value of the named gauge.
	Gauge(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue)
	// Timing records a latency observation for the named timer.
	Timing(ctx context.Context, name string, d time.Duration, attrs ...attribute.KeyValue)
	// Span starts a trace span. The returned end func records err (if any)
	// and ends the span; it must be called exactly once.
	Span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error))
}

type noopRecorder struct{}

var _ Recorder = (*noopRecorder)(nil)

// Noop returns a Recorder that discards everything. It is the default when
// no recorder is injected.
func Noop() Recorder {
	return &noopRecorder{}
}

func (noopRecorder) Count(context.Context, string, int64, ...attribute.KeyValue)    {}
func (noopRecorder) Gauge(context.Context, string, float64, ...attribute.KeyValue)  {}
func (noopRecorder) Timing(context.Context, string, time.Duration, ...attribute.KeyValue) {
}

func (noopRecorder) Span(ctx context.Context, _ string, _ ...attribute.KeyValue) (context.Context, func(error)) {
	return ctx, func(error) {}
}

type otelRecorder struct {
	meter  metric.Meter
	tracer trace.Tracer

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Gauge
	histograms map[string]metric.Float64Histogram
}

var _ Recorder = (*otelRecorder)(nil)

// NewOtel returns a Recorder that forwards observations to OpenTelemetry.
// Instruments are created lazily per name and cached for the lifetime of
// the recorder. Timings are recorded in milliseconds.
func NewOtel(meter metric.Meter, tracer trace.Tracer) Recorder {
	return &otelRecorder{
		meter:      meter,
		tracer:     tracer,
		counters:   make(map[string]metric.Int64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (r *otelRecorder) Count(ctx context.Context, name string, delta int64, attrs ...attribute.KeyValue) {
	r.mu.Lock()
	counter, ok := r.counters[name]
	if !ok {
		var err error
		counter, err = r.meter.Int64Counter(name)
		if err != nil {
			r.mu.Unlock()
			return
		}
		r.counters[name] = counter
	}
	r.mu.Unlock()
	counter.Add(ctx, delta, metric.WithAttributes(attrs...))
}

func (r *otelRecorder) Gauge(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	r.mu.Lock()
	gauge, ok := r.gauges[name]
	if !ok {
		var err error
		gauge, err = r.meter.Float64Gauge(name)
		if err != nil {
			r.mu.Unlock()
			return
		}
		r.gauges[name] = gauge
	}
	r.mu.Unlock()
	gauge.Record(ctx, value, metric.WithAttributes(attrs...))
}

func (r *otelRecorder) Timing(ctx context.Context, name string, d time.Duration, attrs ...attribute.KeyValue) {
	r.mu.Lock()
	hist, ok := r.histograms[name]
	if !ok {
		var err error
		hist, err = r.meter.Float64Histogram(name, metric.WithUnit("ms"))
		if err != nil {
			r.mu.Unlock()
			return
		}
		r.histograms[name] = hist
	}
	r.mu.Unlock()
	hist.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(attrs...))
}

func (r *otelRecorder) Span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := r.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
