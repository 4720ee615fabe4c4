package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instrument names.
const (
	MetricCycles           = "agrisync.sync.cycles"
	MetricCycleDuration    = "agrisync.sync.duration"
	MetricDispatches       = "agrisync.dispatch.total"
	MetricDispatchDuration = "agrisync.dispatch.duration"
	MetricQueueDepth       = "agrisync.queue.depth"
	MetricEnqueued         = "agrisync.queue.enqueued"
)

// Metrics holds the sync instruments.
type Metrics struct {
	Cycles           metric.Int64Counter
	CycleDuration    metric.Float64Histogram
	Dispatches       metric.Int64Counter
	DispatchDuration metric.Float64Histogram
	QueueDepth       metric.Int64Gauge
	Enqueued         metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.Cycles, err = meter.Int64Counter(MetricCycles,
		metric.WithDescription("Sync cycles run, by result"),
	)
	if err != nil {
		return nil, err
	}

	m.CycleDuration, err = meter.Float64Histogram(MetricCycleDuration,
		metric.WithDescription("Sync cycle duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.Dispatches, err = meter.Int64Counter(MetricDispatches,
		metric.WithDescription("Delivery attempts, by kind and outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.DispatchDuration, err = meter.Float64Histogram(MetricDispatchDuration,
		metric.WithDescription("Delivery attempt duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.QueueDepth, err = meter.Int64Gauge(MetricQueueDepth,
		metric.WithDescription("Items waiting for delivery after the last cycle"),
	)
	if err != nil {
		return nil, err
	}

	m.Enqueued, err = meter.Int64Counter(MetricEnqueued,
		metric.WithDescription("Items captured into the queue, by kind"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordCycle records one finished sync cycle.
func (m *Metrics) RecordCycle(ctx context.Context, aborted bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "drained"
	if aborted {
		result = "aborted"
	}
	m.Cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	m.CycleDuration.Record(ctx, d.Seconds())
}

// RecordDispatch records one delivery attempt. outcome is "" on success or the
// error classification code.
func (m *Metrics) RecordDispatch(ctx context.Context, kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "success"
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	m.Dispatches.Add(ctx, 1, attrs)
	m.DispatchDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordEnqueue counts a newly captured item.
func (m *Metrics) RecordEnqueue(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.Enqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// SetQueueDepth records how many items still await delivery.
func (m *Metrics) SetQueueDepth(ctx context.Context, depth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Record(ctx, int64(depth))
}
