package service

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/quorumgate/internal/adapter/scripted"
	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/audit"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
	"github.com/Strob0t/quorumgate/internal/port/validator"
	"github.com/Strob0t/quorumgate/internal/signing"
)

const testCertificate = "LS0tLS1CRUdJTiBDRVJUSUZJQ0FURS0tLS0t"

func testSigner(t *testing.T) *signing.Signer {
	t.Helper()
	s, err := signing.NewSigner("quorumgate-unit-test-signing-key")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func entry(status validation.Status, score float64, rationale string) scripted.Entry {
	return scripted.Entry{Verdict: validation.Verdict{
		Status:    status,
		Score:     validation.Score(score),
		Rationale: rationale,
	}}
}

// approveAll returns a script approving every agent with the given score.
func approveAll(score float64) scripted.Script {
	def := entry(validation.StatusApproved, score, "looks good")
	return scripted.Script{Default: &def}
}

func newTestCoordinator(t *testing.T, v validator.Validator) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(Options{
		Signer:      testSigner(t),
		Validator:   v,
		MaxParallel: 4,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.RegisterAll(context.Background(), agent.StandardRoster()); err != nil {
		t.Fatal(err)
	}
	return c
}

func testTask(ct task.ChangeType) task.Task {
	return task.Task{ID: "task-1", ChangeType: ct, Title: "change under review"}
}

func countAction(entries []audit.Entry, action string) int {
	n := 0
	for i := range entries {
		if entries[i].Action == action {
			n++
		}
	}
	return n
}

func result(name string, status validation.Status, score float64) validation.Result {
	return validation.Result{
		AgentID:   name + "-id",
		Agent:     agent.Descriptor{Name: name},
		Status:    status,
		Score:     validation.Score(score),
		Rationale: name + " rationale",
		Timestamp: time.Now().UTC(),
	}
}
