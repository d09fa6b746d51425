// Package performance defines SLA thresholds, run metrics, alerts and the pipeline
// record the performance monitor inspects.
package performance

import (
	"errors"
	"fmt"
	"time"

	"github.com/Strob0t/quorumgate/internal/domain/audit"
	"github.com/Strob0t/quorumgate/internal/domain/consensus"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
)

// Metric names an SLA threshold.
type Metric string

const (
	MetricValidationTime        Metric = "max_validation_time"
	MetricMemoryUsage           Metric = "max_memory_usage"
	MetricContextOptimization   Metric = "min_context_optimization"
	MetricParallelismEfficiency Metric = "min_parallelism_efficiency"
)

// Severity ranks an alert.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// SLA holds the thresholds a run must meet.
type SLA struct {
	MaxValidationTime        time.Duration `json:"max_validation_time" yaml:"max_validation_time"`
	MaxMemoryUsage           uint64        `json:"max_memory_usage" yaml:"max_memory_usage"`
	MinContextOptimization   float64       `json:"min_context_optimization" yaml:"min_context_optimization"`
	MinParallelismEfficiency float64       `json:"min_parallelism_efficiency" yaml:"min_parallelism_efficiency"`
}

// DefaultSLA returns the built-in thresholds: two minutes, 200 MiB, 80 % and 30 %.
func DefaultSLA() SLA {
	return SLA{
		MaxValidationTime:        2 * time.Minute,
		MaxMemoryUsage:           200 << 20,
		MinContextOptimization:   80,
		MinParallelismEfficiency: 30,
	}
}

// Validate rejects thresholds that can never be met.
func (s *SLA) Validate() error {
	if s.MaxValidationTime <= 0 {
		return errors.New("max_validation_time must be positive")
	}
	if s.MaxMemoryUsage == 0 {
		return errors.New("max_memory_usage must be positive")
	}
	if s.MinContextOptimization < 0 || s.MinContextOptimization > 100 {
		return fmt.Errorf("min_context_optimization must be within 0-100, got %v", s.MinContextOptimization)
	}
	if s.MinParallelismEfficiency < 0 || s.MinParallelismEfficiency > 100 {
		return fmt.Errorf("min_parallelism_efficiency must be within 0-100, got %v", s.MinParallelismEfficiency)
	}
	return nil
}

// Metrics is one observation of a completed run.
type Metrics struct {
	TotalValidationTime   time.Duration `json:"total_validation_time"`
	MemoryUsage           uint64        `json:"memory_usage"`
	ContextOptimization   float64       `json:"context_optimization"`
	ParallelismEfficiency float64       `json:"parallelism_efficiency"`
	Violations            int           `json:"violations"`
	SLACompliant          bool          `json:"sla_compliant"`
	Timestamp             time.Time     `json:"timestamp"`
}

// Alert reports one SLA breach.
type Alert struct {
	Severity        Severity  `json:"severity"`
	Metric          Metric    `json:"metric"`
	CurrentValue    float64   `json:"current_value"`
	Threshold       float64   `json:"threshold"`
	Message         string    `json:"message"`
	Timestamp       time.Time `json:"timestamp"`
	Recommendations []string  `json:"recommendations"`
}

// Check compares m against the thresholds and returns one alert per breach.
func (s *SLA) Check(m *Metrics, now time.Time) []Alert {
	var alerts []Alert

	if m.TotalValidationTime > s.MaxValidationTime {
		alerts = append(alerts, Alert{
			Severity:     SeverityCritical,
			Metric:       MetricValidationTime,
			CurrentValue: float64(m.TotalValidationTime.Milliseconds()),
			Threshold:    float64(s.MaxValidationTime.Milliseconds()),
			Message: fmt.Sprintf("validation time exceeded SLA: %dms > %dms",
				m.TotalValidationTime.Milliseconds(), s.MaxValidationTime.Milliseconds()),
			Timestamp: now,
			Recommendations: []string{
				"Increase parallelism in domain validation",
				"Optimize context reduction",
				"Set per-agent response time limits",
			},
		})
	}

	if m.MemoryUsage > s.MaxMemoryUsage {
		alerts = append(alerts, Alert{
			Severity:        SeverityWarning,
			Metric:          MetricMemoryUsage,
			CurrentValue:    float64(m.MemoryUsage),
			Threshold:       float64(s.MaxMemoryUsage),
			Message:         fmt.Sprintf("memory usage exceeded SLA: %d bytes > %d bytes", m.MemoryUsage, s.MaxMemoryUsage),
			Timestamp:       now,
			Recommendations: []string{"Reduce validation context size", "Purge the validation cache more frequently"},
		})
	}

	if m.ContextOptimization < s.MinContextOptimization {
		alerts = append(alerts, Alert{
			Severity:     SeverityWarning,
			Metric:       MetricContextOptimization,
			CurrentValue: m.ContextOptimization,
			Threshold:    s.MinContextOptimization,
			Message: fmt.Sprintf("context optimization below SLA: %.1f%% < %.1f%%",
				m.ContextOptimization, s.MinContextOptimization),
			Timestamp:       now,
			Recommendations: []string{"Narrow the changed-file set", "Improve component impact analysis"},
		})
	}

	if m.ParallelismEfficiency < s.MinParallelismEfficiency {
		alerts = append(alerts, Alert{
			Severity:     SeverityInfo,
			Metric:       MetricParallelismEfficiency,
			CurrentValue: m.ParallelismEfficiency,
			Threshold:    s.MinParallelismEfficiency,
			Message: fmt.Sprintf("parallelism efficiency below SLA: %.1f%% < %.1f%%",
				m.ParallelismEfficiency, s.MinParallelismEfficiency),
			Timestamp:       now,
			Recommendations: []string{"Balance work across domain agents", "Reduce inter-agent dependencies"},
		})
	}

	return alerts
}

// ParallelismEfficiency estimates the saving of running reviews concurrently,
// taking the slowest review as the wall time. Fewer than two reviews yield zero.
func ParallelismEfficiency(times []time.Duration) float64 {
	if len(times) <= 1 {
		return 0
	}
	var sum, slowest time.Duration
	for _, t := range times {
		sum += t
		if t > slowest {
			slowest = t
		}
	}
	if sum <= 0 {
		return 0
	}
	return float64(sum-slowest) / float64(sum) * 100
}

// ResourceSample is one background reading of process resource use.
type ResourceSample struct {
	HeapAlloc  uint64    `json:"heap_alloc"`
	Sys        uint64    `json:"sys"`
	Goroutines int       `json:"goroutines"`
	Timestamp  time.Time `json:"timestamp"`
}

// FrameworkMetrics describes the last parallel fan-out measured by the isolation layer.
type FrameworkMetrics struct {
	WallTime              time.Duration `json:"wall_time"`
	SequentialTime        time.Duration `json:"sequential_time"`
	ParallelismEfficiency float64       `json:"parallelism_efficiency"`
}

// Pipeline is the full record of one orchestration run.
type Pipeline struct {
	Architecture     validation.Result       `json:"architecture_analysis"`
	DomainReviews    []validation.Result     `json:"parallel_domain_reviews"`
	Resolutions      []validation.Resolution `json:"conflict_resolution"`
	FrameworkMetrics FrameworkMetrics        `json:"framework_metrics"`
	FinalConsensus   *consensus.Result       `json:"final_consensus"`
	AuditTrail       []audit.Entry           `json:"audit_trail"`
}

// DomainTimes returns the processing time of every phase-2 review.
func (p *Pipeline) DomainTimes() []time.Duration {
	out := make([]time.Duration, len(p.DomainReviews))
	for i := range p.DomainReviews {
		out[i] = p.DomainReviews[i].ProcessingTime
	}
	return out
}
