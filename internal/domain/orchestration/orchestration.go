// Package orchestration defines the request and result of one three-phase
// validation run, plus the pure rules that pick agents and merge recommendations.
package orchestration

import (
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/consensus"
	"github.com/Strob0t/quorumgate/internal/domain/performance"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
)

// Circuit breaker operation names, one per phase.
const (
	OpArchitecture = "architecture-analysis"
	OpDomain       = "parallel-domain-validation"
	OpConsensus    = "consensus-validation"
)

// Request asks for a change to be validated.
type Request struct {
	Task           task.Task `json:"task" yaml:"task"`
	ChangedFiles   []string  `json:"changed_files" yaml:"changed_files"`
	FullContext    []string  `json:"full_context" yaml:"full_context"`
	RequiredAgents []string  `json:"required_agents,omitempty" yaml:"required_agents,omitempty"`
}

// Validate checks the request before any agent work begins.
func (r *Request) Validate() error {
	if err := r.Task.Validate(); err != nil {
		return fmt.Errorf("task: %w", err)
	}
	if len(r.ChangedFiles) == 0 {
		return fmt.Errorf("changed_files must not be empty")
	}
	return nil
}

// Result is the aggregated outcome of one run.
type Result struct {
	RunID             string                       `json:"run_id"`
	Approved          bool                         `json:"approved"`
	Pipeline          performance.Pipeline         `json:"validation_pipeline"`
	Consensus         consensus.Result             `json:"consensus_result"`
	Metrics           performance.Metrics          `json:"performance_metrics"`
	Recommendations   []string                     `json:"recommendations"`
	SecurityDecisions []consensus.SecurityDecision `json:"security_decisions"`
	ProcessingTime    time.Duration                `json:"processing_time"`
	SLACompliant      bool                         `json:"sla_compliant"`
}

var (
	performancePatterns = []string{"performance", "optimization", "cache", "database"}
	uxPatterns          = []string{"component", "ui/", "style", "accessibility"}
	infraPatterns       = []string{"docker", "deploy", ".yml", ".yaml", "infrastructure"}
)

func anyPathContains(files, patterns []string) bool {
	for _, f := range files {
		lf := strings.ToLower(f)
		for _, p := range patterns {
			if strings.Contains(lf, p) {
				return true
			}
		}
	}
	return false
}

// SelectDomainAgents returns the phase-2 agent names for a request, with the
// security authority first. RequiredAgents are appended and duplicates dropped.
func SelectDomainAgents(req *Request, securityAuthority string) []string {
	names := []string{securityAuthority}
	if req.Task.ChangeType == task.ChangePerformance || anyPathContains(req.ChangedFiles, performancePatterns) {
		names = append(names, agent.NamePerformance)
	}
	names = append(names, agent.NameQuality)
	if anyPathContains(req.ChangedFiles, uxPatterns) {
		names = append(names, agent.NameUX)
	}
	if anyPathContains(req.ChangedFiles, infraPatterns) {
		names = append(names, agent.NameDeployment)
	}
	names = append(names, req.RequiredAgents...)

	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if n == "" || n == agent.NameArchitecture || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Recommendation texts added by the orchestrator.
const (
	RecSlowValidation    = "Optimize the validation context to stay within the time budget"
	RecLowOptimization   = "Improve dependency analysis to achieve better context optimization"
	RecSecurityRejection = "Security requirements must be addressed before proceeding"
	RecHumanReview       = "Human review required to resolve agent conflicts"
)

// Recommendations merges required changes, SLA breaches and security outcomes
// into one deduplicated list.
func Recommendations(c *consensus.Result, m *performance.Metrics, sla *performance.SLA) []string {
	var out []string
	if !c.Approved {
		out = append(out, c.RequiredChanges...)
	}
	if m.TotalValidationTime > sla.MaxValidationTime {
		out = append(out, RecSlowValidation)
	}
	if m.ContextOptimization < sla.MinContextOptimization {
		out = append(out, RecLowOptimization)
	}
	if consensus.HasSecurityRejection(c.SecurityDecisions) {
		out = append(out, RecSecurityRejection)
	}
	for _, r := range c.ConflictResolutions {
		if r.Type == validation.StrategyHumanEscalation {
			out = append(out, RecHumanReview)
			break
		}
	}

	seen := make(map[string]bool, len(out))
	deduped := make([]string, 0, len(out))
	for _, r := range out {
		if !seen[r] {
			seen[r] = true
			deduped = append(deduped, r)
		}
	}
	return deduped
}
