package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Strob0t/quorumgate/internal/domain/orchestration"
)

const testSecret = "cli-test-secret-0123456789abcdef"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func setupCheck(t *testing.T, verdicts string) (configPath, requestPath, verdictsPath string) {
	t.Helper()
	t.Setenv("AGENT_SECRET_KEY", testSecret)
	dir := t.TempDir()
	configPath = writeFile(t, dir, "quorumgate.yaml", `
logging:
  level: error
sampler:
  interval: 1h
`)
	requestPath = writeFile(t, dir, "request.yaml", `
task:
  change_type: architecture
  title: split billing service
changed_files: [src/billing/service.go]
full_context: [src/billing/service.go, src/billing/model.go, src/api/routes.go]
`)
	verdictsPath = writeFile(t, dir, "verdicts.yaml", verdicts)
	return configPath, requestPath, verdictsPath
}

func TestCheckApproved(t *testing.T) {
	cfg, req, verdicts := setupCheck(t, `
default:
  status: APPROVED
  score: 4.5
  recommendations: []
  rationale: looks good
`)
	var out, logs bytes.Buffer
	if err := runCheck(t.Context(), &out, &logs, cfg, req, verdicts); err != nil {
		t.Fatalf("runCheck: %v\nlogs:\n%s", err, logs.String())
	}

	var res orchestration.Result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("stdout is not a JSON result: %v\n%s", err, out.String())
	}
	if !res.Approved || res.RunID == "" {
		t.Fatalf("expected approved run, got approved=%v run_id=%q", res.Approved, res.RunID)
	}
}

func TestCheckRejected(t *testing.T) {
	cfg, req, verdicts := setupCheck(t, `
default:
  status: APPROVED
  score: 4.5
  recommendations: []
  rationale: looks good
verdicts:
  security-validator:
    status: REJECTED
    score: 1
    recommendations: ["rotate the leaked key"]
    rationale: credential in diff
`)
	var out, logs bytes.Buffer
	err := runCheck(t.Context(), &out, &logs, cfg, req, verdicts)
	if !errors.Is(err, errRejected) {
		t.Fatalf("expected errRejected, got %v", err)
	}
	if !strings.Contains(out.String(), "Security rejection") {
		t.Fatalf("expected security rejection in output:\n%s", out.String())
	}
}

func TestCheckMissingSecret(t *testing.T) {
	cfg, req, verdicts := setupCheck(t, "default: {status: APPROVED, score: 5, rationale: ok}\n")
	t.Setenv("AGENT_SECRET_KEY", "")

	var out, logs bytes.Buffer
	err := runCheck(t.Context(), &out, &logs, cfg, req, verdicts)
	if err == nil || errors.Is(err, errRejected) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no result output, got %s", out.String())
	}
}

func TestAgentsCommandListsRoster(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"agents", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"security-validator", "architecture-designer"} {
		if !strings.Contains(out.String(), name) {
			t.Fatalf("expected %s in roster listing:\n%s", name, out.String())
		}
	}
}
