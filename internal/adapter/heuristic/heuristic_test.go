package heuristic

import (
	"context"
	"testing"

	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
)

func run(t *testing.T, name, diff string, scope validation.ContextScope) validation.Verdict {
	t.Helper()
	v, err := Validator{}.Validate(context.Background(),
		agent.Descriptor{Name: name},
		task.Task{ChangeType: task.ChangeQuality, Title: "t", Diff: diff},
		scope)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestHeuristicVerdicts(t *testing.T) {
	scope := validation.ContextScope{ChangedFiles: []string{"internal/app/x.go"}, Reduction: 95}
	tests := []struct {
		name  string
		agent string
		diff  string
		want  validation.Status
	}{
		{"clean security", agent.NameSecurity, "+ return nil", validation.StatusApproved},
		{"hard-coded password", agent.NameSecurity, "+ password=hunter2", validation.StatusRejected},
		{"eval call", agent.NameSecurity, "+ eval(input)", validation.StatusNeedsRevision},
		{"todo marker", agent.NameQuality, "+ // TODO later", validation.StatusNeedsRevision},
		{"clean quality", agent.NameQuality, "+ return nil", validation.StatusApproved},
		{"select star", agent.NamePerformance, "+ SELECT * FROM t", validation.StatusNeedsRevision},
		{"floating image", agent.NameDeployment, "image: app:latest", validation.StatusNeedsRevision},
		{"unknown agent", "custom-agent", "", validation.StatusApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, tt.agent, tt.diff, scope).Status; got != tt.want {
				t.Fatalf("status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSecretPathRejected(t *testing.T) {
	v := run(t, agent.NameSecurity, "", validation.ContextScope{ChangedFiles: []string{"config/.env"}})
	if v.Status != validation.StatusRejected {
		t.Fatalf("expected rejection for .env file, got %s", v.Status)
	}
}

func TestArchitectureSpread(t *testing.T) {
	narrow := run(t, agent.NameArchitecture, "", validation.ContextScope{AffectedComponents: []string{"a"}})
	if narrow.Status != validation.StatusApproved || *narrow.Score != 5.0 {
		t.Fatalf("expected approval with 5.0, got %s %v", narrow.Status, *narrow.Score)
	}
	wide := run(t, agent.NameArchitecture, "", validation.ContextScope{
		AffectedComponents: []string{"a", "b", "c", "d", "e", "f"},
	})
	if wide.Status != validation.StatusNeedsRevision {
		t.Fatalf("expected revision for wide change, got %s", wide.Status)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Validator{}).Validate(ctx, agent.Descriptor{Name: agent.NameSecurity}, task.Task{}, validation.ContextScope{}); err == nil {
		t.Fatal("expected context error")
	}
}
