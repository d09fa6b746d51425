package service

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/Strob0t/quorumgate/internal/domain"
	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/audit"
	"github.com/Strob0t/quorumgate/internal/domain/consensus"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
)

func newConsensus(t *testing.T, policy consensus.Policy) (*ConsensusService, *audit.Log) {
	t.Helper()
	log := audit.NewLog()
	return NewConsensusService(testSigner(t), log, policy, agent.NameSecurity), log
}

func TestSecurityRejectionIsFinal(t *testing.T) {
	svc, log := newConsensus(t, nil)
	results := []validation.Result{
		result(agent.NameArchitecture, validation.StatusApproved, 5),
		result(agent.NameSecurity, validation.StatusRejected, 1),
		result(agent.NameQuality, validation.StatusApproved, 5),
		result(agent.NamePerformance, validation.StatusApproved, 5),
	}

	got, err := svc.ValidateConsensus(context.Background(), results, task.ChangeArchitecture)
	if err != nil {
		t.Fatal(err)
	}
	if got.Approved || got.FinalScore != 0 || got.EscalationRequired {
		t.Fatalf("expected final rejection, got %+v", got)
	}
	if got.Phase != consensus.PhaseRejected {
		t.Fatalf("expected phase %s, got %s", consensus.PhaseRejected, got.Phase)
	}
	want := "Security rejection: " + agent.NameSecurity + " rationale"
	if !slices.Contains(got.RequiredChanges, want) {
		t.Fatalf("expected %q in %v", want, got.RequiredChanges)
	}
	if len(got.SecurityDecisions) != 1 || !got.SecurityDecisions[0].Immutable {
		t.Fatalf("expected one immutable decision, got %+v", got.SecurityDecisions)
	}
	if got.Signature == "" {
		t.Fatal("expected signed result")
	}
	if countAction(log.Entries(), audit.ActionMultiSignature) != 0 {
		t.Fatal("multi-signature phase must not run after a security rejection")
	}
}

func TestSecurityAndArchitectureApproval(t *testing.T) {
	svc, log := newConsensus(t, nil)
	results := []validation.Result{
		result(agent.NameArchitecture, validation.StatusApproved, 4.5),
		result(agent.NameSecurity, validation.StatusApproved, 5),
	}

	got, err := svc.ValidateConsensus(context.Background(), results, task.ChangeArchitecture)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Approved || !got.ConsensusAchieved {
		t.Fatalf("expected approval with consensus, got %+v", got)
	}
	if got.FinalScore != consensus.ScoreSecurityApproved {
		t.Fatalf("expected final score %v, got %v", consensus.ScoreSecurityApproved, got.FinalScore)
	}
	if got.Phase != consensus.PhaseFinal {
		t.Fatalf("expected phase %s, got %s", consensus.PhaseFinal, got.Phase)
	}
	for _, action := range []string{audit.ActionSecurityDecision, audit.ActionMultiSignature, audit.ActionConsensusValidation} {
		if countAction(log.Entries(), action) != 1 {
			t.Fatalf("expected one %s entry", action)
		}
	}
}

func TestMultiSignatureRequirements(t *testing.T) {
	tests := []struct {
		name    string
		results []validation.Result
		ct      task.ChangeType
		want    string
	}{
		{
			name:    "missing approver",
			results: []validation.Result{result(agent.NameSecurity, validation.StatusApproved, 5)},
			ct:      task.ChangeArchitecture,
			want:    "Missing required approval from " + agent.NameArchitecture,
		},
		{
			name: "below minimum",
			results: []validation.Result{
				result(agent.NameSecurity, validation.StatusApproved, 5),
				result(agent.NameArchitecture, validation.StatusApproved, 3),
			},
			ct:   task.ChangeArchitecture,
			want: agent.NameArchitecture + " rejected or scored below minimum (3.0 < 4.0)",
		},
		{
			name: "one of two approvers revises",
			results: []validation.Result{
				result(agent.NameSecurity, validation.StatusApproved, 5),
				result(agent.NamePerformance, validation.StatusApproved, 4),
				result(agent.NameQuality, validation.StatusNeedsRevision, 4),
			},
			ct:   task.ChangePerformance,
			want: agent.NameQuality + " rejected or scored below minimum (4.0 < 3.5)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newConsensus(t, nil)
			got, err := svc.ValidateConsensus(context.Background(), tt.results, tt.ct)
			if err != nil {
				t.Fatal(err)
			}
			if got.Approved || got.ConsensusAchieved {
				t.Fatalf("expected no approval, got %+v", got)
			}
			if !slices.Contains(got.RequiredChanges, tt.want) {
				t.Fatalf("expected %q in %v", tt.want, got.RequiredChanges)
			}
		})
	}
}

func TestVetoForcesRejection(t *testing.T) {
	policy := consensus.DefaultPolicy()
	req := policy[task.ChangeArchitecture]
	req.VetoPower = []string{agent.NameSecurity, agent.NameDeployment}
	policy[task.ChangeArchitecture] = req

	svc, _ := newConsensus(t, policy)
	results := []validation.Result{
		result(agent.NameSecurity, validation.StatusApproved, 5),
		result(agent.NameArchitecture, validation.StatusApproved, 5),
		result(agent.NameDeployment, validation.StatusRejected, 0),
	}
	got, err := svc.ValidateConsensus(context.Background(), results, task.ChangeArchitecture)
	if err != nil {
		t.Fatal(err)
	}
	if got.Approved {
		t.Fatal("expected veto to force rejection")
	}
	if !got.ConsensusAchieved {
		t.Fatal("required approvers all approved, consensus should be reported")
	}
	if !slices.Contains(got.RequiredChanges, agent.NameDeployment+" exercised veto power") {
		t.Fatalf("expected veto change, got %v", got.RequiredChanges)
	}
}

func TestArchitecturePerformanceConflict(t *testing.T) {
	svc, _ := newConsensus(t, nil)
	results := []validation.Result{
		result(agent.NameArchitecture, validation.StatusApproved, 5),
		result(agent.NameSecurity, validation.StatusApproved, 5),
		result(agent.NamePerformance, validation.StatusNeedsRevision, 1.5),
	}
	got, err := svc.ValidateConsensus(context.Background(), results, task.ChangeArchitecture)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Conflicts) != 1 {
		t.Fatalf("expected one conflict, got %+v", got.Conflicts)
	}
	c := got.Conflicts[0]
	if c.Type != validation.ConflictArchitectural || c.Resolution.Type != validation.StrategyConsensus {
		t.Fatalf("unexpected conflict: %+v", c)
	}
	if len(c.Resolution.RequiredApprovals) != 2 {
		t.Fatalf("expected both agents to be required, got %v", c.Resolution.RequiredApprovals)
	}
	if got.EscalationRequired {
		t.Fatal("consensus resolution must not escalate")
	}
}

func TestSecurityOpposedConflict(t *testing.T) {
	svc, _ := newConsensus(t, nil)
	results := []validation.Result{
		result(agent.NameSecurity, validation.StatusApproved, 5),
		result(agent.NameQuality, validation.StatusRejected, 1),
	}
	got, err := svc.ValidateConsensus(context.Background(), results, task.ChangeQuality)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, c := range got.Conflicts {
		if c.Type == validation.ConflictSecurity {
			found = true
			if c.Resolution.Type != validation.StrategySecurityOverride || c.Resolution.Rationale != securityOverrideRationale {
				t.Fatalf("unexpected resolution: %+v", c.Resolution)
			}
		}
	}
	if !found {
		t.Fatalf("expected a security conflict, got %+v", got.Conflicts)
	}
}

func TestReportedConflictResolution(t *testing.T) {
	tests := []struct {
		conflict validation.ConflictType
		want     validation.StrategyType
		escalate bool
	}{
		{validation.ConflictPerformance, validation.StrategyConsensus, false},
		{validation.ConflictSecurity, validation.StrategySecurityOverride, false},
		{"LICENSING", validation.StrategyHumanEscalation, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.conflict), func(t *testing.T) {
			svc, log := newConsensus(t, nil)
			q := result(agent.NameQuality, validation.StatusApproved, 5)
			q.Conflicts = []validation.Conflict{{Type: tt.conflict, Severity: validation.SeverityLow, Description: "reported"}}
			results := []validation.Result{result(agent.NameSecurity, validation.StatusApproved, 5), q}

			got, err := svc.ValidateConsensus(context.Background(), results, task.ChangeQuality)
			if err != nil {
				t.Fatal(err)
			}
			if len(got.ConflictResolutions) != 1 || got.ConflictResolutions[0].Type != tt.want {
				t.Fatalf("expected %s, got %+v", tt.want, got.ConflictResolutions)
			}
			if got.EscalationRequired != tt.escalate {
				t.Fatalf("escalation = %v, want %v", got.EscalationRequired, tt.escalate)
			}
			if countAction(log.Entries(), audit.ActionConflictResolved) != 1 {
				t.Fatal("expected one conflict resolution entry")
			}
			if results[1].Conflicts[0].Resolution != nil {
				t.Fatal("input result was mutated")
			}
		})
	}
}

func TestUnknownChangeType(t *testing.T) {
	svc, _ := newConsensus(t, nil)
	_, err := svc.ValidateConsensus(context.Background(), nil, "docs")
	if !errors.Is(err, domain.ErrUnknownChangeType) {
		t.Fatalf("expected ErrUnknownChangeType, got %v", err)
	}
}

func TestSecurityDecisionLedgerAppends(t *testing.T) {
	svc, _ := newConsensus(t, nil)
	ctx := context.Background()
	for _, st := range []validation.Status{validation.StatusApproved, validation.StatusRejected} {
		results := []validation.Result{result(agent.NameSecurity, st, 3)}
		if _, err := svc.ValidateConsensus(ctx, results, task.ChangeSecurity); err != nil {
			t.Fatal(err)
		}
	}
	ledger := svc.SecurityDecisions()
	if len(ledger) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(ledger))
	}
	if ledger[0].Decision != consensus.DecisionApprove || ledger[1].Decision != consensus.DecisionReject {
		t.Fatalf("unexpected ledger order: %+v", ledger)
	}

	ledger[0].Decision = consensus.DecisionReject
	if svc.SecurityDecisions()[0].Decision != consensus.DecisionApprove {
		t.Fatal("ledger must not be editable through the returned slice")
	}
}

func TestResultMutationKeepsAuditChainValid(t *testing.T) {
	policy := consensus.DefaultPolicy()
	svc, log := newConsensus(t, policy)
	results := []validation.Result{
		result(agent.NameSecurity, validation.StatusApproved, 5),
		result(agent.NameArchitecture, validation.StatusApproved, 1),
	}
	got, err := svc.ValidateConsensus(context.Background(), results, task.ChangeArchitecture)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.RequiredChanges) == 0 {
		t.Fatal("expected a required change for the low architecture score")
	}

	got.RequiredChanges[0] = "edited by caller"
	policy[task.ChangeArchitecture].RequiredApprovals[0] = "edited-approver"

	if res := log.Verify(); !res.Valid {
		t.Fatalf("caller mutation broke the audit chain: %+v", res)
	}
}
