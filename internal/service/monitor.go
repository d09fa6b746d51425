package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	qgotel "github.com/Strob0t/quorumgate/internal/adapter/otel"
	"github.com/Strob0t/quorumgate/internal/domain/audit"
	"github.com/Strob0t/quorumgate/internal/domain/performance"
	"github.com/Strob0t/quorumgate/internal/logger"
	"github.com/Strob0t/quorumgate/internal/port/notifier"
	"github.com/Strob0t/quorumgate/internal/resilience"
	"github.com/Strob0t/quorumgate/internal/signing"
)

const (
	monitorAgent = "performance-monitor"
	breakerAgent = "circuit-breaker"

	// historyLimit bounds the retained metrics and alerts.
	historyLimit = 100
)

// Remediator reacts to critical SLA breaches.
type Remediator interface {
	Remediate(ctx context.Context, alert performance.Alert) error
}

// RemediatorFunc adapts a function to Remediator.
type RemediatorFunc func(ctx context.Context, alert performance.Alert) error

// Remediate implements Remediator.
func (f RemediatorFunc) Remediate(ctx context.Context, alert performance.Alert) error {
	return f(ctx, alert)
}

// RemediationAction names the corrective step taken for a breached metric.
func RemediationAction(m performance.Metric) string {
	switch m {
	case performance.MetricValidationTime:
		return "reduce validation scope"
	case performance.MetricMemoryUsage:
		return "purge result cache"
	case performance.MetricContextOptimization:
		return "apply aggressive context filtering"
	case performance.MetricParallelismEfficiency:
		return "tune parallel execution"
	}
	return "none"
}

// CachePurgeRemediator logs the remediation action for every alert and purges
// the result cache when memory is over budget. The default monitor hands it
// only critical alerts, so the purge runs when a custom policy forwards
// memory alerts to it.
func CachePurgeRemediator(purge func(context.Context) error) Remediator {
	return RemediatorFunc(func(ctx context.Context, alert performance.Alert) error {
		slog.WarnContext(ctx, "remediating performance alert",
			"metric", alert.Metric,
			"severity", alert.Severity,
			"action", RemediationAction(alert.Metric),
			"message", alert.Message,
		)
		if alert.Metric == performance.MetricMemoryUsage && purge != nil {
			return purge(ctx)
		}
		return nil
	})
}

// MonitorService enforces the SLA over completed runs and wraps pipeline
// phases in per-operation circuit breakers.
type MonitorService struct {
	audit    *auditor
	sla      performance.SLA
	breakers *resilience.Registry

	notifier   notifier.Notifier
	remediator Remediator
	sampler    *Sampler
	metrics    *qgotel.Metrics

	mu      sync.Mutex
	alerts  []performance.Alert
	history []performance.Metrics

	memory func() uint64
	now    func() time.Time
}

// NewMonitorService creates a MonitorService.
func NewMonitorService(signer *signing.Signer, log *audit.Log, breakers *resilience.Registry, sla performance.SLA) *MonitorService {
	return &MonitorService{
		audit:      &auditor{log: log, signer: signer},
		sla:        sla,
		breakers:   breakers,
		remediator: CachePurgeRemediator(nil),
		memory:     func() uint64 { return readRuntime().HeapAlloc },
		now:        time.Now,
	}
}

// SetNotifier publishes alerts through n.
func (s *MonitorService) SetNotifier(n notifier.Notifier) { s.notifier = n }

// SetRemediator replaces the critical-alert hook.
func (s *MonitorService) SetRemediator(r Remediator) { s.remediator = r }

// SetMetrics enables metric recording.
func (s *MonitorService) SetMetrics(m *qgotel.Metrics) { s.metrics = m }

// SetSampler attaches a background sampler. Memory readings then come from
// its latest sample.
func (s *MonitorService) SetSampler(sm *Sampler) {
	s.sampler = sm
	s.memory = func() uint64 {
		if r, ok := sm.Latest(); ok {
			return r.HeapAlloc
		}
		return readRuntime().HeapAlloc
	}
}

// SLA returns the active thresholds.
func (s *MonitorService) SLA() performance.SLA { return s.sla }

// Monitor measures a completed pipeline against the SLA and raises an alert
// per breach. Critical alerts are handed to the remediator.
func (s *MonitorService) Monitor(ctx context.Context, p *performance.Pipeline, start time.Time) *performance.Metrics {
	now := s.now()
	m := &performance.Metrics{
		TotalValidationTime:   now.Sub(start),
		MemoryUsage:           s.memory(),
		ContextOptimization:   p.Architecture.ContextScope.Reduction,
		ParallelismEfficiency: performance.ParallelismEfficiency(p.DomainTimes()),
		Timestamp:             now.UTC(),
	}
	alerts := s.sla.Check(m, now.UTC())
	m.Violations = len(alerts)
	m.SLACompliant = len(alerts) == 0

	for i := range alerts {
		s.raise(ctx, &alerts[i])
	}

	s.mu.Lock()
	s.history = appendBounded(s.history, *m)
	s.alerts = appendBounded(s.alerts, alerts...)
	s.mu.Unlock()

	s.audit.record(ctx, audit.ActionPerformanceMonitored, monitorAgent, audit.OutcomeOf(m.SLACompliant), "", map[string]any{
		"total_validation_ms":    m.TotalValidationTime.Milliseconds(),
		"memory_usage":           m.MemoryUsage,
		"context_optimization":   m.ContextOptimization,
		"parallelism_efficiency": m.ParallelismEfficiency,
		"violations":             m.Violations,
	})
	return m
}

func (s *MonitorService) raise(ctx context.Context, a *performance.Alert) {
	s.metrics.Alert(ctx, string(a.Metric), string(a.Severity))
	s.audit.record(ctx, audit.ActionPerformanceAlert, monitorAgent, audit.OutcomeFailure, "", map[string]any{
		"metric":        string(a.Metric),
		"severity":      string(a.Severity),
		"current_value": a.CurrentValue,
		"threshold":     a.Threshold,
	})
	slog.WarnContext(ctx, "sla violation", "metric", a.Metric, "severity", a.Severity, "message", a.Message)

	if s.notifier != nil {
		err := s.notifier.Send(ctx, notifier.Notification{
			Title:     "SLA violation: " + string(a.Metric),
			Message:   a.Message,
			Level:     strings.ToLower(string(a.Severity)),
			Source:    "performance." + string(a.Metric),
			RunID:     logger.RunID(ctx),
			Fields:    map[string]any{"current_value": a.CurrentValue, "threshold": a.Threshold},
			Timestamp: a.Timestamp,
		})
		if err != nil {
			slog.ErrorContext(ctx, "publish alert", "notifier", s.notifier.Name(), "error", err)
		}
	}

	if a.Severity == performance.SeverityCritical && s.remediator != nil {
		if err := s.remediator.Remediate(ctx, *a); err != nil {
			slog.ErrorContext(ctx, "remediation failed", "metric", a.Metric, "error", err)
		}
	}
}

func appendBounded[T any](s []T, v ...T) []T {
	s = append(s, v...)
	if over := len(s) - historyLimit; over > 0 {
		s = append(s[:0:0], s[over:]...)
	}
	return s
}

// Alerts returns the retained alerts, oldest first.
func (s *MonitorService) Alerts() []performance.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]performance.Alert(nil), s.alerts...)
}

// History returns the retained run metrics, oldest first.
func (s *MonitorService) History() []performance.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]performance.Metrics(nil), s.history...)
}

// Breakers returns the state of every circuit breaker.
func (s *MonitorService) Breakers() []resilience.Snapshot {
	return s.breakers.Snapshots()
}

// Samples returns the background resource samples, if a sampler is attached.
func (s *MonitorService) Samples() []performance.ResourceSample {
	if s.sampler == nil {
		return nil
	}
	return s.sampler.Samples()
}

// ExecuteWithCircuitBreaker runs fn under the breaker named op. When the
// breaker is open fn is not invoked and a *resilience.OpenError is returned.
func (s *MonitorService) ExecuteWithCircuitBreaker(ctx context.Context, op string, fn func(context.Context) error) error {
	b := s.breakers.Get(op)

	ctx, span := qgotel.StartPhaseSpan(ctx, op)
	start := time.Now()
	err := b.Execute(ctx, fn)
	elapsed := time.Since(start)
	snap := b.Snapshot()

	details := map[string]any{
		"operation":    op,
		"execution_ms": elapsed.Milliseconds(),
		"state":        snap.State.String(),
		"failures":     snap.Failures,
	}
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		details["next_attempt"] = snap.NextAttempt
		s.audit.record(ctx, audit.ActionBreakerRejected, breakerAgent, audit.OutcomeFailure, "", details)
	case err != nil:
		details["error"] = err.Error()
		s.audit.record(ctx, audit.ActionBreakerFailure, breakerAgent, audit.OutcomeFailure, "", details)
	default:
		s.audit.record(ctx, audit.ActionBreakerSuccess, breakerAgent, audit.OutcomeSuccess, "", details)
	}
	s.metrics.Phase(ctx, op, elapsed, err == nil)
	qgotel.EndSpan(span, err)
	return err
}

// Guard runs fn under the breaker named op and returns its value. Errors from
// fn are returned unchanged.
func Guard[T any](ctx context.Context, m *MonitorService, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := m.ExecuteWithCircuitBreaker(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
