package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/quorumgate/internal/domain"
	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/audit"
	"github.com/Strob0t/quorumgate/internal/domain/consensus"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
	"github.com/Strob0t/quorumgate/internal/signing"
)

const (
	consensusAgent = "consensus-engine"

	// scoreGapThreshold is the score difference above which an architecture and
	// a performance review that disagree are treated as conflicting.
	scoreGapThreshold = 2.0

	securityOverrideRationale = "Security validator decision is immutable and cannot be overridden"
)

// ConsensusService combines validation results into one binding decision.
// Security decisions are kept in an append-only ledger for the service lifetime.
type ConsensusService struct {
	signer    *signing.Signer
	audit     *auditor
	policy    consensus.Policy
	authority string

	mu        sync.Mutex
	decisions []consensus.SecurityDecision

	now func() time.Time
}

// NewConsensusService creates a ConsensusService. authority names the agent whose
// verdicts become security decisions.
func NewConsensusService(signer *signing.Signer, log *audit.Log, policy consensus.Policy, authority string) *ConsensusService {
	if authority == "" {
		authority = agent.NameSecurity
	}
	if policy == nil {
		policy = consensus.PolicyFor(authority)
	}
	return &ConsensusService{
		signer:    signer,
		audit:     &auditor{log: log, signer: signer},
		policy:    policy,
		authority: authority,
		now:       time.Now,
	}
}

// Authority returns the name of the security authority.
func (s *ConsensusService) Authority() string { return s.authority }

// SecurityDecisions returns every security decision recorded so far.
func (s *ConsensusService) SecurityDecisions() []consensus.SecurityDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]consensus.SecurityDecision(nil), s.decisions...)
}

// ValidateConsensus runs the security, multi-signature and conflict phases over
// results. A security rejection is a normal, terminal result, not an error.
func (s *ConsensusService) ValidateConsensus(ctx context.Context, results []validation.Result, ct task.ChangeType) (*consensus.Result, error) {
	req, ok := s.policy[ct]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownChangeType, ct)
	}

	m := consensus.NewMachine()
	if err := m.Advance(consensus.PhaseSecurity); err != nil {
		return nil, err
	}

	decisions := s.securityPhase(ctx, results)
	if consensus.HasSecurityRejection(decisions) {
		if err := m.Advance(consensus.PhaseRejected); err != nil {
			return nil, err
		}
		out := &consensus.Result{
			Approved:            false,
			RequiredChanges:     rejectionChanges(decisions),
			ConflictResolutions: []validation.Resolution{},
			SecurityDecisions:   decisions,
			FinalScore:          consensus.ScoreSecurityRejected,
			Phase:               m.Current(),
		}
		s.finish(ctx, out, ct)
		return out, nil
	}

	if err := m.Advance(consensus.PhaseMultiSignature); err != nil {
		return nil, err
	}
	multiApproved, achieved, changes := s.multiSignaturePhase(ctx, results, &req, ct)

	if err := m.Advance(consensus.PhaseConflict); err != nil {
		return nil, err
	}
	conflicts := s.conflictPhase(ctx, results)

	if err := m.Advance(consensus.PhaseFinal); err != nil {
		return nil, err
	}

	resolutions := make([]validation.Resolution, 0, len(conflicts))
	escalate := false
	for i := range conflicts {
		resolutions = append(resolutions, *conflicts[i].Resolution)
		if conflicts[i].Resolution.Type == validation.StrategyHumanEscalation {
			escalate = true
		}
	}
	if changes == nil {
		changes = []string{}
	}

	out := &consensus.Result{
		Approved:            multiApproved,
		RequiredChanges:     changes,
		ConflictResolutions: resolutions,
		Conflicts:           conflicts,
		SecurityDecisions:   decisions,
		FinalScore:          consensus.FinalScore(decisions),
		ConsensusAchieved:   achieved,
		EscalationRequired:  escalate,
		Phase:               m.Current(),
	}
	s.finish(ctx, out, ct)
	return out, nil
}

// securityPhase turns every verdict of the security authority into a signed,
// immutable decision and appends it to the ledger.
func (s *ConsensusService) securityPhase(ctx context.Context, results []validation.Result) []consensus.SecurityDecision {
	var decisions []consensus.SecurityDecision
	for i := range results {
		r := &results[i]
		if r.Agent.Name != s.authority {
			continue
		}
		d := consensus.SecurityDecision{
			ID:        uuid.NewString(),
			Decision:  consensus.DecisionFor(r.Status),
			Rationale: r.Rationale,
			Immutable: true,
			Timestamp: s.now().UTC(),
		}
		d.Signature = s.signer.Sign(d)
		decisions = append(decisions, d)

		s.audit.record(ctx, audit.ActionSecurityDecision, r.Agent.Name,
			audit.OutcomeOf(d.Decision != consensus.DecisionReject), d.Signature, map[string]any{
				"decision_id": d.ID,
				"decision":    string(d.Decision),
				"rationale":   d.Rationale,
			})
	}

	s.mu.Lock()
	s.decisions = append(s.decisions, decisions...)
	s.mu.Unlock()

	if decisions == nil {
		decisions = []consensus.SecurityDecision{}
	}
	return decisions
}

func rejectionChanges(decisions []consensus.SecurityDecision) []string {
	var out []string
	for i := range decisions {
		if decisions[i].Decision == consensus.DecisionReject {
			out = append(out, "Security rejection: "+decisions[i].Rationale)
		}
	}
	return out
}

// multiSignaturePhase applies the policy requirement for the change type.
func (s *ConsensusService) multiSignaturePhase(ctx context.Context, results []validation.Result, req *consensus.Requirement, ct task.ChangeType) (approved, achieved bool, changes []string) {
	byName := make(map[string]*validation.Result, len(results))
	for i := range results {
		if _, seen := byName[results[i].Agent.Name]; !seen {
			byName[results[i].Agent.Name] = &results[i]
		}
	}

	approvals := 0
	for _, name := range req.RequiredApprovals {
		r, ok := byName[name]
		switch {
		case !ok:
			changes = append(changes, "Missing required approval from "+name)
		case r.Status == validation.StatusApproved && r.ScoreOrZero() >= req.MinimumScore:
			approvals++
		default:
			changes = append(changes, fmt.Sprintf("%s rejected or scored below minimum (%.1f < %.1f)",
				name, r.ScoreOrZero(), req.MinimumScore))
		}
	}
	for _, name := range req.VetoPower {
		if r, ok := byName[name]; ok && r.Status == validation.StatusRejected {
			changes = append(changes, name+" exercised veto power")
		}
	}

	approved = len(changes) == 0 && approvals >= len(req.RequiredApprovals)
	achieved = approvals == len(req.RequiredApprovals)

	s.audit.record(ctx, audit.ActionMultiSignature, consensusAgent, audit.OutcomeOf(approved), "", map[string]any{
		"change_type":        string(ct),
		"approvals":          approvals,
		"required":           slices.Clone(req.RequiredApprovals),
		"minimum_score":      req.MinimumScore,
		"consensus_achieved": achieved,
		"rejections":         slices.Clone(changes),
	})
	return approved, achieved, changes
}

// conflictPhase detects pairwise disagreements, collects agent-reported ones,
// and attaches a resolution to each.
func (s *ConsensusService) conflictPhase(ctx context.Context, results []validation.Result) []validation.Conflict {
	var conflicts []validation.Conflict
	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			if c, ok := s.detect(&results[i], &results[j]); ok {
				conflicts = append(conflicts, c)
			}
		}
	}
	for i := range results {
		for _, c := range results[i].Conflicts {
			c.AffectedAgents = append([]string(nil), c.AffectedAgents...)
			if len(c.AffectedAgents) == 0 {
				c.AffectedAgents = []string{results[i].Agent.Name}
			}
			c.Resolution = nil
			conflicts = append(conflicts, c)
		}
	}

	for i := range conflicts {
		c := &conflicts[i]
		if c.Resolution == nil {
			c.Resolution = s.resolve(c)
		}
		s.audit.record(ctx, audit.ActionConflictResolved, consensusAgent, audit.OutcomeConflict, "", map[string]any{
			"conflict_type":   string(c.Type),
			"severity":        string(c.Severity),
			"description":     c.Description,
			"affected_agents": c.AffectedAgents,
			"strategy":        string(c.Resolution.Type),
		})
	}
	if conflicts == nil {
		conflicts = []validation.Conflict{}
	}
	return conflicts
}

// detect classifies one pair of results. Detected conflicts carry their resolution.
func (s *ConsensusService) detect(a, b *validation.Result) (validation.Conflict, bool) {
	an, bn := a.Agent.Name, b.Agent.Name
	pair := []string{an, bn}

	if isArchPerfPair(an, bn) && a.Status != b.Status &&
		math.Abs(a.ScoreOrZero()-b.ScoreOrZero()) > scoreGapThreshold {
		return validation.Conflict{
			Type:           validation.ConflictArchitectural,
			Severity:       validation.SeverityMedium,
			Description:    fmt.Sprintf("%s and %s disagree on the technical approach", an, bn),
			AffectedAgents: pair,
			Resolution: &validation.Resolution{
				Type:              validation.StrategyConsensus,
				RequiredApprovals: append([]string(nil), pair...),
				Rationale:         "Conflicting reviews require agreement from every affected agent",
			},
		}, true
	}

	if s.securityOpposed(a, b) || s.securityOpposed(b, a) {
		return validation.Conflict{
			Type:           validation.ConflictSecurity,
			Severity:       validation.SeverityCritical,
			Description:    fmt.Sprintf("%s and %s reached opposite security conclusions", an, bn),
			AffectedAgents: pair,
			Resolution:     s.securityOverride(),
		}, true
	}
	return validation.Conflict{}, false
}

func isArchPerfPair(a, b string) bool {
	return (a == agent.NameArchitecture && b == agent.NamePerformance) ||
		(a == agent.NamePerformance && b == agent.NameArchitecture)
}

// securityOpposed reports whether sec is the authority and other reached the
// opposite approve/reject verdict.
func (s *ConsensusService) securityOpposed(sec, other *validation.Result) bool {
	if sec.Agent.Name != s.authority || other.Agent.Name == s.authority {
		return false
	}
	return (sec.Status == validation.StatusApproved && other.Status == validation.StatusRejected) ||
		(sec.Status == validation.StatusRejected && other.Status == validation.StatusApproved)
}

func (s *ConsensusService) securityOverride() *validation.Resolution {
	return &validation.Resolution{
		Type:              validation.StrategySecurityOverride,
		RequiredApprovals: []string{s.authority},
		Rationale:         securityOverrideRationale,
	}
}

// resolve picks a strategy for an agent-reported conflict.
func (s *ConsensusService) resolve(c *validation.Conflict) *validation.Resolution {
	switch c.Type {
	case validation.ConflictSecurity:
		return s.securityOverride()
	case validation.ConflictArchitectural, validation.ConflictPerformance, validation.ConflictQuality:
		return &validation.Resolution{
			Type:              validation.StrategyConsensus,
			RequiredApprovals: append([]string(nil), c.AffectedAgents...),
			Rationale:         "Conflicting reviews require agreement from every affected agent",
		}
	default:
		return &validation.Resolution{
			Type:              validation.StrategyHumanEscalation,
			RequiredApprovals: []string{},
			Rationale:         fmt.Sprintf("Unrecognized conflict type %q requires human review", c.Type),
		}
	}
}

// finish signs the result and records the final audit entry.
func (s *ConsensusService) finish(ctx context.Context, out *consensus.Result, ct task.ChangeType) {
	ts := s.now().UTC()
	out.Signature = s.signer.Sign(out.Payload(ts))

	s.audit.record(ctx, audit.ActionConsensusValidation, consensusAgent, audit.OutcomeOf(out.Approved), out.Signature, map[string]any{
		"change_type":         string(ct),
		"approved":            out.Approved,
		"consensus_achieved":  out.ConsensusAchieved,
		"final_score":         out.FinalScore,
		"escalation_required": out.EscalationRequired,
		"phase":               string(out.Phase),
		"signed_at":           ts,
	})
	slog.InfoContext(ctx, "consensus reached",
		"change_type", ct,
		"approved", out.Approved,
		"final_score", out.FinalScore,
		"phase", out.Phase,
	)
}
