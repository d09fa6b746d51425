// Package consensus defines the security-first consensus model: immutable security
// decisions, per-change-type approval policies and the per-run phase machine.
package consensus

import (
	"fmt"
	"time"

	"github.com/Strob0t/quorumgate/internal/domain/validation"
)

// DecisionKind is the security authority's ruling.
type DecisionKind string

const (
	DecisionApprove     DecisionKind = "APPROVE"
	DecisionReject      DecisionKind = "REJECT"
	DecisionConditional DecisionKind = "CONDITIONAL"
)

// DecisionFor maps an agent status to a security ruling.
func DecisionFor(s validation.Status) DecisionKind {
	switch s {
	case validation.StatusApproved:
		return DecisionApprove
	case validation.StatusRejected:
		return DecisionReject
	default:
		return DecisionConditional
	}
}

// SecurityDecision is append-only: once recorded it is never edited or deleted.
// Immutable is always true.
type SecurityDecision struct {
	ID        string       `json:"id"`
	Decision  DecisionKind `json:"decision"`
	Rationale string       `json:"rationale"`
	Immutable bool         `json:"immutable"`
	Signature string       `json:"signature"`
	Timestamp time.Time    `json:"timestamp"`
}

// Result is the single binding decision of one orchestration run.
type Result struct {
	Approved            bool                    `json:"approved"`
	RequiredChanges     []string                `json:"required_changes"`
	ConflictResolutions []validation.Resolution `json:"conflict_resolutions"`
	Conflicts           []validation.Conflict   `json:"conflicts,omitempty"`
	SecurityDecisions   []SecurityDecision      `json:"security_decisions"`
	FinalScore          float64                 `json:"final_score"`
	ConsensusAchieved   bool                    `json:"consensus_achieved"`
	EscalationRequired  bool                    `json:"escalation_required"`
	Phase               Phase                   `json:"phase"`
	Signature           string                  `json:"signature"`
}

// HasSecurityRejection reports whether any security decision rejected the change.
func HasSecurityRejection(decisions []SecurityDecision) bool {
	for i := range decisions {
		if decisions[i].Decision == DecisionReject {
			return true
		}
	}
	return false
}

// Final scores by security outcome.
const (
	ScoreSecurityRejected = 0.0
	ScoreSecurityApproved = 4.5
	ScoreNeutral          = 3.0
)

// FinalScore derives the run score from the security decisions alone.
func FinalScore(decisions []SecurityDecision) float64 {
	approved := false
	for i := range decisions {
		switch decisions[i].Decision {
		case DecisionReject:
			return ScoreSecurityRejected
		case DecisionApprove:
			approved = true
		}
	}
	if approved {
		return ScoreSecurityApproved
	}
	return ScoreNeutral
}

// SignedPayload is the subset of a consensus result covered by its audit signature.
type SignedPayload struct {
	Approved          bool      `json:"approved"`
	ConsensusAchieved bool      `json:"consensus_achieved"`
	FinalScore        float64   `json:"final_score"`
	Timestamp         time.Time `json:"timestamp"`
}

// Payload returns the signature payload for r at time ts.
func (r *Result) Payload(ts time.Time) SignedPayload {
	return SignedPayload{
		Approved:          r.Approved,
		ConsensusAchieved: r.ConsensusAchieved,
		FinalScore:        r.FinalScore,
		Timestamp:         ts,
	}
}

// Phase is a state of the per-run consensus machine.
type Phase string

const (
	PhasePending        Phase = "PENDING"
	PhaseSecurity       Phase = "SECURITY"
	PhaseMultiSignature Phase = "MULTI_SIGNATURE"
	PhaseConflict       Phase = "CONFLICT"
	PhaseRejected       Phase = "REJECTED"
	PhaseFinal          Phase = "FINAL_CONSENSUS"
)

var transitions = map[Phase][]Phase{
	PhasePending:        {PhaseSecurity},
	PhaseSecurity:       {PhaseRejected, PhaseMultiSignature},
	PhaseMultiSignature: {PhaseConflict},
	PhaseConflict:       {PhaseFinal},
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseRejected || p == PhaseFinal
}

// Machine tracks one run through the consensus phases and refuses illegal jumps.
type Machine struct {
	current Phase
	history []Phase
}

// NewMachine returns a machine in the Pending phase.
func NewMachine() *Machine {
	return &Machine{current: PhasePending, history: []Phase{PhasePending}}
}

// Current returns the active phase.
func (m *Machine) Current() Phase { return m.current }

// History returns every phase visited, in order.
func (m *Machine) History() []Phase { return append([]Phase(nil), m.history...) }

// Advance moves to next if the transition is legal.
func (m *Machine) Advance(next Phase) error {
	for _, allowed := range transitions[m.current] {
		if allowed == next {
			m.current = next
			m.history = append(m.history, next)
			return nil
		}
	}
	return fmt.Errorf("illegal consensus transition %s -> %s", m.current, next)
}
