package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/quorumgate/internal/adapter/ristretto"
	"github.com/Strob0t/quorumgate/internal/adapter/scripted"
	"github.com/Strob0t/quorumgate/internal/domain"
	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/audit"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
	"github.com/Strob0t/quorumgate/internal/port/validator"
)

func newIsolation(t *testing.T, v validator.Validator) (*IsolationService, *audit.Log) {
	t.Helper()
	log := audit.NewLog()
	return NewIsolationService(testSigner(t), log, v, 4), log
}

func TestRegisterCertificateGate(t *testing.T) {
	iso, log := newIsolation(t, scripted.New(approveAll(4)))
	ctx := context.Background()

	for _, level := range []agent.TrustLevel{agent.TrustHigh, agent.TrustCritical} {
		_, err := iso.Register(ctx, agent.Descriptor{Name: "no-cert-" + string(level), Version: "1", TrustLevel: level})
		if !errors.Is(err, domain.ErrCertificate) {
			t.Fatalf("%s without certificate: expected ErrCertificate, got %v", level, err)
		}
	}

	id, err := iso.Register(ctx, agent.Descriptor{
		Name: "certified", Version: "1", TrustLevel: agent.TrustCritical, Certificate: testCertificate,
	})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected an id")
	}
	if got := countAction(log.Entries(), audit.ActionAgentRegistered); got != 3 {
		t.Fatalf("expected 3 registration entries, got %d", got)
	}
}

func TestRegisterIdempotentAndNameUnique(t *testing.T) {
	iso, _ := newIsolation(t, scripted.New(approveAll(4)))
	ctx := context.Background()
	d := agent.Descriptor{Name: "ux", Version: "1", TrustLevel: agent.TrustMedium}

	first, err := iso.Register(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	second, err := iso.Register(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("expected same id, got %s and %s", first, second)
	}

	d.Version = "2"
	if _, err := iso.Register(ctx, d); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for reused name, got %v", err)
	}

	other, err := iso.Register(ctx, agent.Descriptor{Name: "ux-2", Version: "1", TrustLevel: agent.TrustMedium})
	if err != nil {
		t.Fatal(err)
	}
	if other == first {
		t.Fatal("descriptors differing by name must get distinct ids")
	}
}

func TestExecuteValidationUnknownAgent(t *testing.T) {
	iso, log := newIsolation(t, scripted.New(approveAll(4)))
	_, err := iso.ExecuteValidation(context.Background(), "missing", testTask(task.ChangeQuality), validation.ContextScope{})
	if !errors.Is(err, domain.ErrAgentNotRegistered) {
		t.Fatalf("expected ErrAgentNotRegistered, got %v", err)
	}
	if got := countAction(log.Entries(), audit.ActionValidationCompleted); got != 0 {
		t.Fatalf("expected no success entry, got %d", got)
	}
}

func TestExecuteValidationDetectsTamperedSignature(t *testing.T) {
	iso, log := newIsolation(t, scripted.New(approveAll(4)))
	ctx := context.Background()
	id, err := iso.Register(ctx, agent.Descriptor{Name: "quality", Version: "1", TrustLevel: agent.TrustLow})
	if err != nil {
		t.Fatal(err)
	}

	iso.mu.Lock()
	iso.agents[id].Signature = "0000"
	iso.mu.Unlock()

	_, err = iso.ExecuteValidation(ctx, id, testTask(task.ChangeQuality), validation.ContextScope{})
	if !errors.Is(err, domain.ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
	if got := countAction(log.Entries(), audit.ActionValidationFailed); got != 1 {
		t.Fatalf("expected one failure entry, got %d", got)
	}
}

func TestExecuteValidationSignsAndCaches(t *testing.T) {
	iso, log := newIsolation(t, scripted.New(approveAll(4.5)))
	c, err := ristretto.New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	iso.SetCache(c, time.Minute)

	ctx := context.Background()
	id, err := iso.Register(ctx, agent.Descriptor{Name: "quality", Version: "1", TrustLevel: agent.TrustLow})
	if err != nil {
		t.Fatal(err)
	}

	tk := testTask(task.ChangeQuality)
	res, err := iso.ExecuteValidation(ctx, id, tk, validation.ContextScope{ChangedFiles: []string{"a.go"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Signature == "" || res.Timestamp.IsZero() {
		t.Fatal("expected signed, stamped result")
	}
	if !iso.signer.Verify(res.Payload(), res.Signature) {
		t.Fatal("result signature does not verify")
	}
	if got := countAction(log.Entries(), audit.ActionValidationCompleted); got != 1 {
		t.Fatalf("expected one completion entry, got %d", got)
	}

	cached, ok, err := iso.CachedResult(ctx, id, tk.ID)
	if err != nil || !ok {
		t.Fatalf("expected cached result, ok=%v err=%v", ok, err)
	}
	if cached.Signature != res.Signature {
		t.Fatal("cached result differs from returned result")
	}

	if err := iso.PurgeCache(ctx); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := iso.CachedResult(ctx, id, tk.ID); ok {
		t.Fatal("expected cache to be empty after purge")
	}
}

func TestExecuteValidationIsolatesInputs(t *testing.T) {
	v := validator.Func(func(_ context.Context, _ agent.Descriptor, tk task.Task, scope validation.ContextScope) (validation.Verdict, error) {
		tk.Labels["touched"] = "yes"
		if len(scope.ChangedFiles) > 0 {
			scope.ChangedFiles[0] = "mutated"
		}
		return validation.Verdict{Status: validation.StatusApproved, Score: validation.Score(4)}, nil
	})
	iso, _ := newIsolation(t, v)
	ctx := context.Background()
	id, err := iso.Register(ctx, agent.Descriptor{Name: "quality", Version: "1", TrustLevel: agent.TrustLow})
	if err != nil {
		t.Fatal(err)
	}

	tk := testTask(task.ChangeQuality)
	tk.Labels = map[string]string{}
	scope := validation.ContextScope{ChangedFiles: []string{"a.go"}}
	if _, err := iso.ExecuteValidation(ctx, id, tk, scope); err != nil {
		t.Fatal(err)
	}
	if _, ok := tk.Labels["touched"]; ok {
		t.Fatal("validator mutated the caller's task")
	}
	if scope.ChangedFiles[0] != "a.go" {
		t.Fatal("validator mutated the caller's scope")
	}
}

func TestExecuteValidationErrors(t *testing.T) {
	errTask := errors.New("scoring backend down")
	tests := []struct {
		name  string
		fn    validator.Func
		check func(error) bool
	}{
		{
			name: "task error returned unchanged",
			fn: func(context.Context, agent.Descriptor, task.Task, validation.ContextScope) (validation.Verdict, error) {
				return validation.Verdict{}, errTask
			},
			check: func(err error) bool { return err == errTask }, //nolint:errorlint // identity is the property under test
		},
		{
			name: "panic recovered",
			fn: func(context.Context, agent.Descriptor, task.Task, validation.ContextScope) (validation.Verdict, error) {
				panic("boom")
			},
			check: func(err error) bool { return err != nil && err.Error() == "validator panic: boom" },
		},
		{
			name: "score out of range",
			fn: func(context.Context, agent.Descriptor, task.Task, validation.ContextScope) (validation.Verdict, error) {
				return validation.Verdict{Status: validation.StatusApproved, Score: validation.Score(7)}, nil
			},
			check: func(err error) bool { return err != nil },
		},
		{
			name: "unknown status",
			fn: func(context.Context, agent.Descriptor, task.Task, validation.ContextScope) (validation.Verdict, error) {
				return validation.Verdict{Status: "MAYBE"}, nil
			},
			check: func(err error) bool { return err != nil },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iso, log := newIsolation(t, tt.fn)
			ctx := context.Background()
			id, err := iso.Register(ctx, agent.Descriptor{Name: "quality", Version: "1", TrustLevel: agent.TrustLow})
			if err != nil {
				t.Fatal(err)
			}
			res, err := iso.ExecuteValidation(ctx, id, testTask(task.ChangeQuality), validation.ContextScope{})
			if res != nil || !tt.check(err) {
				t.Fatalf("unexpected outcome: res=%v err=%v", res, err)
			}
			if got := countAction(log.Entries(), audit.ActionValidationFailed); got != 1 {
				t.Fatalf("expected one failure entry, got %d", got)
			}
		})
	}
}

func TestExecuteParallelKeepsOrder(t *testing.T) {
	script := scripted.Script{Verdicts: map[string]scripted.Entry{}}
	names := []string{"slow", "medium", "fast"}
	for i, n := range names {
		e := entry(validation.StatusApproved, 4, n)
		e.Delay = time.Duration(len(names)-i) * 20 * time.Millisecond
		script.Verdicts[n] = e
	}
	iso, _ := newIsolation(t, scripted.New(script))
	ctx := context.Background()

	var ids []string
	for _, n := range names {
		id, err := iso.Register(ctx, agent.Descriptor{Name: n, Version: "1", TrustLevel: agent.TrustLow})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	results, err := iso.ExecuteParallel(ctx, ids, testTask(task.ChangeQuality), validation.ContextScope{})
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range results {
		if r.Agent.Name != names[i] {
			t.Fatalf("result %d: expected %s, got %s", i, names[i], r.Agent.Name)
		}
	}

	fm := iso.FrameworkMetrics()
	if fm.WallTime <= 0 || fm.SequentialTime < fm.WallTime {
		t.Fatalf("unexpected framework metrics: %+v", fm)
	}
	if fm.ParallelismEfficiency <= 0 {
		t.Fatalf("expected positive efficiency for concurrent agents, got %v", fm.ParallelismEfficiency)
	}
}

func TestExecuteParallelPropagatesFailure(t *testing.T) {
	fail := scripted.Entry{Fail: "agent crashed"}
	ok := entry(validation.StatusApproved, 4, "ok")
	iso, _ := newIsolation(t, scripted.New(scripted.Script{Verdicts: map[string]scripted.Entry{"a": ok, "b": fail}}))
	ctx := context.Background()

	var ids []string
	for _, n := range []string{"a", "b"} {
		id, err := iso.Register(ctx, agent.Descriptor{Name: n, Version: "1", TrustLevel: agent.TrustLow})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	if _, err := iso.ExecuteParallel(ctx, ids, testTask(task.ChangeQuality), validation.ContextScope{}); err == nil || err.Error() != "agent crashed" {
		t.Fatalf("expected agent error, got %v", err)
	}
}

func TestOptimizeContextReducesLargeUniverse(t *testing.T) {
	iso, _ := newIsolation(t, scripted.New(approveAll(4)))
	full := make([]string, 100)
	for i := range full {
		full[i] = "src/module" + string(rune('a'+i%26)) + "/file.go"
	}
	scope := iso.OptimizeContext(full, []string{"src/api/handler.go", "src/components/button.tsx"})
	if scope.Reduction <= 80 {
		t.Fatalf("expected reduction above 80%%, got %v", scope.Reduction)
	}
}

func TestAgentsSortedByName(t *testing.T) {
	iso, _ := newIsolation(t, scripted.New(approveAll(4)))
	ctx := context.Background()
	for _, n := range []string{"zeta", "alpha"} {
		if _, err := iso.Register(ctx, agent.Descriptor{Name: n, Version: "1", TrustLevel: agent.TrustLow}); err != nil {
			t.Fatal(err)
		}
	}
	got := iso.Agents()
	if len(got) != 2 || got[0].Descriptor.Name != "alpha" {
		t.Fatalf("unexpected agents: %+v", got)
	}
	if _, ok := iso.AgentID("zeta"); !ok {
		t.Fatal("expected zeta to be registered")
	}
}
