// Package service implements the four subsystems of the validation coordinator:
// agent isolation, consensus, performance monitoring and orchestration.
package service

import (
	"context"
	"log/slog"

	"github.com/Strob0t/quorumgate/internal/domain/audit"
	"github.com/Strob0t/quorumgate/internal/logger"
	"github.com/Strob0t/quorumgate/internal/signing"
)

// auditor signs entries, appends them to the shared log and mirrors them to slog.
type auditor struct {
	log    *audit.Log
	signer *signing.Signer
}

type auditPayload struct {
	RunID   string         `json:"run_id,omitempty"`
	Action  string         `json:"action"`
	Agent   string         `json:"agent"`
	Outcome audit.Outcome  `json:"outcome"`
	Details map[string]any `json:"details,omitempty"`
}

// record appends an entry. When signature is empty the entry is signed over its
// own action, agent, outcome and details.
func (a *auditor) record(ctx context.Context, action, agentName string, outcome audit.Outcome, signature string, details map[string]any) {
	runID := logger.RunID(ctx)
	if signature == "" {
		signature = a.signer.Sign(auditPayload{
			RunID:   runID,
			Action:  action,
			Agent:   agentName,
			Outcome: outcome,
			Details: details,
		})
	}

	e, err := a.log.Record(audit.Entry{
		RunID:     runID,
		Action:    action,
		Agent:     agentName,
		Outcome:   outcome,
		Signature: signature,
		Details:   details,
	})
	if err != nil {
		slog.ErrorContext(ctx, "audit record failed", "action", action, "error", err)
		return
	}
	slog.InfoContext(ctx, "audit",
		"seq", e.Sequence,
		"action", e.Action,
		"agent", e.Agent,
		"outcome", e.Outcome,
	)
}
