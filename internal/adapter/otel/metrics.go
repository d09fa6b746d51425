package otel

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "quorumgate"

// Metrics holds all quorumgate metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	RunsStarted        metric.Int64Counter
	RunsCompleted      metric.Int64Counter
	RunsFailed         metric.Int64Counter
	Validations        metric.Int64Counter
	ValidationDuration metric.Float64Histogram
	PhaseDuration      metric.Float64Histogram
	BreakerTransitions metric.Int64Counter
	Alerts             metric.Int64Counter
	HeapBytes          metric.Int64Gauge
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFrom(otel.Meter(meterName))
}

// NewMetricsFrom creates all metric instruments on the given meter.
func NewMetricsFrom(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err, e error

	m.RunsStarted, e = meter.Int64Counter("quorumgate.runs.started",
		metric.WithDescription("Number of orchestration runs started"))
	err = errors.Join(err, e)

	m.RunsCompleted, e = meter.Int64Counter("quorumgate.runs.completed",
		metric.WithDescription("Number of orchestration runs that produced a decision"))
	err = errors.Join(err, e)

	m.RunsFailed, e = meter.Int64Counter("quorumgate.runs.failed",
		metric.WithDescription("Number of orchestration runs that raised an error"))
	err = errors.Join(err, e)

	m.Validations, e = meter.Int64Counter("quorumgate.validations",
		metric.WithDescription("Agent validations by agent and status"))
	err = errors.Join(err, e)

	m.ValidationDuration, e = meter.Float64Histogram("quorumgate.validation.duration_seconds",
		metric.WithDescription("Agent validation duration in seconds"))
	err = errors.Join(err, e)

	m.PhaseDuration, e = meter.Float64Histogram("quorumgate.phase.duration_seconds",
		metric.WithDescription("Pipeline phase duration in seconds"))
	err = errors.Join(err, e)

	m.BreakerTransitions, e = meter.Int64Counter("quorumgate.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"))
	err = errors.Join(err, e)

	m.Alerts, e = meter.Int64Counter("quorumgate.alerts",
		metric.WithDescription("Performance alerts by metric and severity"))
	err = errors.Join(err, e)

	m.HeapBytes, e = meter.Int64Gauge("quorumgate.process.heap_bytes",
		metric.WithDescription("Sampled heap allocation in bytes"), metric.WithUnit("By"))
	err = errors.Join(err, e)

	if err != nil {
		return nil, err
	}
	return m, nil
}

// RunStarted counts a new run.
func (m *Metrics) RunStarted(ctx context.Context, changeType string) {
	if m == nil {
		return
	}
	m.RunsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("change_type", changeType)))
}

// RunFinished counts a run outcome. err non-nil means the system could not decide.
func (m *Metrics) RunFinished(ctx context.Context, approved bool, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.RunsFailed.Add(ctx, 1)
		return
	}
	m.RunsCompleted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("approved", approved)))
}

// Validation records one agent execution.
func (m *Metrics) Validation(ctx context.Context, agent, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("agent", agent), attribute.String("status", status))
	m.Validations.Add(ctx, 1, attrs)
	m.ValidationDuration.Record(ctx, d.Seconds(), attrs)
}

// Phase records the duration of one guarded pipeline phase.
func (m *Metrics) Phase(ctx context.Context, op string, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.PhaseDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("operation", op), attribute.Bool("ok", ok)))
}

// BreakerTransition counts a circuit breaker state change.
func (m *Metrics) BreakerTransition(ctx context.Context, op, from, to string) {
	if m == nil {
		return
	}
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// Alert counts an SLA breach.
func (m *Metrics) Alert(ctx context.Context, metricName, severity string) {
	if m == nil {
		return
	}
	m.Alerts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("metric", metricName),
		attribute.String("severity", severity),
	))
}

// Heap records a resource sample.
func (m *Metrics) Heap(ctx context.Context, bytes uint64) {
	if m == nil {
		return
	}
	m.HeapBytes.Record(ctx, int64(bytes)) //nolint:gosec // heap size fits in int64
}
