// Package audit provides the append-only, hash-chained audit trail shared by every
// subsystem of the coordinator.
package audit

import "time"

// Outcome is the result recorded for an audited action.
type Outcome string

const (
	OutcomeSuccess  Outcome = "SUCCESS"
	OutcomeFailure  Outcome = "FAILURE"
	OutcomeConflict Outcome = "CONFLICT"
)

// Audited actions.
const (
	ActionAgentRegistered       = "AGENT_REGISTERED"
	ActionValidationCompleted   = "VALIDATION_COMPLETED"
	ActionValidationFailed      = "VALIDATION_FAILED"
	ActionSecurityDecision      = "SECURITY_DECISION"
	ActionMultiSignature        = "MULTI_SIGNATURE_VALIDATION"
	ActionConflictResolved      = "CONFLICT_RESOLVED"
	ActionConsensusValidation   = "CONSENSUS_VALIDATION"
	ActionBreakerSuccess        = "CIRCUIT_BREAKER_SUCCESS"
	ActionBreakerFailure        = "CIRCUIT_BREAKER_FAILURE"
	ActionBreakerRejected       = "CIRCUIT_BREAKER_REJECTED"
	ActionPerformanceMonitored  = "PERFORMANCE_MONITORED"
	ActionPerformanceAlert      = "PERFORMANCE_ALERT"
	ActionOrchestrationComplete = "ORCHESTRATION_COMPLETED"
)

// Entry is one immutable line of the audit trail. Details values must be JSON-encodable.
type Entry struct {
	ID        string         `json:"id"`
	Sequence  uint64         `json:"seq"`
	Timestamp time.Time      `json:"ts"`
	RunID     string         `json:"run_id,omitempty"`
	Action    string         `json:"action"`
	Agent     string         `json:"agent"`
	Outcome   Outcome        `json:"outcome"`
	Signature string         `json:"signature"`
	Details   map[string]any `json:"details,omitempty"`
	PrevHash  string         `json:"prev_hash"`
	Hash      string         `json:"hash"`
}

// OutcomeOf maps a boolean success to an Outcome.
func OutcomeOf(ok bool) Outcome {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
