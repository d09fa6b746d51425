// Package validation defines the outcome of one agent evaluating one change.
package validation

import (
	"time"

	"github.com/Strob0t/quorumgate/internal/domain/agent"
)

// Status is an agent's verdict on a change.
type Status string

const (
	StatusApproved      Status = "APPROVED"
	StatusRejected      Status = "REJECTED"
	StatusNeedsRevision Status = "NEEDS_REVISION"
)

// ValidStatus reports whether s is a known status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusApproved, StatusRejected, StatusNeedsRevision:
		return true
	}
	return false
}

// MaxScore is the upper bound of an agent score.
const MaxScore = 5.0

// Verdict is what a pluggable validator returns. The isolation framework adds
// identity, timing and signature to produce a Result.
type Verdict struct {
	Status          Status     `json:"status" yaml:"status"`
	Score           *float64   `json:"score,omitempty" yaml:"score,omitempty"`
	Recommendations []string   `json:"recommendations" yaml:"recommendations"`
	Conflicts       []Conflict `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Rationale       string     `json:"rationale" yaml:"rationale"`
}

// Result is a signed, timed verdict. Created once per agent execution and never mutated.
type Result struct {
	AgentID         string           `json:"agent_id"`
	Agent           agent.Descriptor `json:"agent"`
	Status          Status           `json:"status"`
	Score           *float64         `json:"score,omitempty"`
	Recommendations []string         `json:"recommendations"`
	Conflicts       []Conflict       `json:"conflicts,omitempty"`
	Rationale       string           `json:"rationale"`
	Signature       string           `json:"signature"`
	ProcessingTime  time.Duration    `json:"processing_time"`
	ContextScope    ContextScope     `json:"context_scope"`
	Timestamp       time.Time        `json:"timestamp"`
}

// ScoreOrZero returns the score, treating a missing score as zero.
func (r *Result) ScoreOrZero() float64 {
	if r.Score == nil {
		return 0
	}
	return *r.Score
}

// Score is a convenience for building score pointers in verdict literals.
func Score(v float64) *float64 {
	return &v
}

// SignedPayload is the subset of a result covered by its signature.
type SignedPayload struct {
	Status          Status    `json:"status"`
	Score           *float64  `json:"score,omitempty"`
	Recommendations []string  `json:"recommendations"`
	Agent           string    `json:"agent"`
	Timestamp       time.Time `json:"timestamp"`
}

// Payload returns the signature payload for r.
func (r *Result) Payload() SignedPayload {
	return SignedPayload{
		Status:          r.Status,
		Score:           r.Score,
		Recommendations: r.Recommendations,
		Agent:           r.Agent.Name,
		Timestamp:       r.Timestamp,
	}
}
