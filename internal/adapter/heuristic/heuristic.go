// Package heuristic implements a deterministic, pattern-based validator used
// when no external scoring strategy is configured.
package heuristic

import (
	"context"
	"fmt"
	"strings"

	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
)

var (
	secretMarkers   = []string{"begin private key", "aws_secret_access_key", "password=", "api_key="}
	dangerousCalls  = []string{"eval(", "exec.command(\"sh\"", "os/exec", "innerhtml"}
	secretPaths     = []string{".env", "id_rsa", ".pem"}
	qualityMarkers  = []string{"todo", "fixme", "xxx"}
	perfAntiMarkers = []string{"select *", "time.sleep(", "n+1"}
)

// Validator scores changes with fixed string rules per well-known agent.
// Unknown agents approve with a neutral score.
type Validator struct{}

// Validate implements validator.Validator.
func (Validator) Validate(ctx context.Context, a agent.Descriptor, t task.Task, scope validation.ContextScope) (validation.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return validation.Verdict{}, err
	}
	diff := strings.ToLower(t.Diff)

	switch a.Name {
	case agent.NameSecurity:
		return security(diff, scope), nil
	case agent.NameArchitecture:
		return architecture(scope), nil
	case agent.NamePerformance:
		return performance(diff, scope), nil
	case agent.NameQuality:
		return quality(diff), nil
	case agent.NameUX:
		return ux(diff, scope), nil
	case agent.NameDeployment:
		return deployment(diff), nil
	}
	return validation.Verdict{
		Status:    validation.StatusApproved,
		Score:     validation.Score(3.0),
		Rationale: fmt.Sprintf("no rules for agent %q", a.Name),
	}, nil
}

func containsAny(s string, markers []string) (string, bool) {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return m, true
		}
	}
	return "", false
}

func security(diff string, scope validation.ContextScope) validation.Verdict {
	if m, ok := containsAny(diff, secretMarkers); ok {
		return validation.Verdict{
			Status:          validation.StatusRejected,
			Score:           validation.Score(0),
			Recommendations: []string{"Remove hard-coded credentials from the change"},
			Rationale:       fmt.Sprintf("diff contains credential marker %q", m),
		}
	}
	for _, f := range scope.ChangedFiles {
		if m, ok := containsAny(strings.ToLower(f), secretPaths); ok {
			return validation.Verdict{
				Status:          validation.StatusRejected,
				Score:           validation.Score(0),
				Recommendations: []string{fmt.Sprintf("Do not commit %s", f)},
				Rationale:       fmt.Sprintf("changed file matches secret path pattern %q", m),
			}
		}
	}
	if m, ok := containsAny(diff, dangerousCalls); ok {
		return validation.Verdict{
			Status:          validation.StatusNeedsRevision,
			Score:           validation.Score(2.5),
			Recommendations: []string{fmt.Sprintf("Justify or remove the use of %q", m)},
			Rationale:       "diff introduces a dangerous call",
		}
	}
	return validation.Verdict{
		Status:    validation.StatusApproved,
		Score:     validation.Score(4.8),
		Rationale: "no security findings",
	}
}

func architecture(scope validation.ContextScope) validation.Verdict {
	spread := len(scope.AffectedComponents)
	score := 5.0
	if spread > 3 {
		score -= 0.5 * float64(spread-3)
	}
	if score < 0 {
		score = 0
	}
	if score >= 4.0 {
		return validation.Verdict{
			Status:    validation.StatusApproved,
			Score:     validation.Score(score),
			Rationale: fmt.Sprintf("change touches %d components", spread),
		}
	}
	return validation.Verdict{
		Status:          validation.StatusNeedsRevision,
		Score:           validation.Score(score),
		Recommendations: []string{"Split the change so each part touches fewer components"},
		Rationale:       fmt.Sprintf("change spreads across %d components", spread),
	}
}

func performance(diff string, scope validation.ContextScope) validation.Verdict {
	if m, ok := containsAny(diff, perfAntiMarkers); ok {
		return validation.Verdict{
			Status:          validation.StatusNeedsRevision,
			Score:           validation.Score(3.0),
			Recommendations: []string{fmt.Sprintf("Avoid %q on hot paths", m)},
			Rationale:       "diff contains a known performance anti-pattern",
		}
	}
	score := 4.0
	if scope.Reduction >= 90 {
		score = 4.5
	}
	return validation.Verdict{
		Status:    validation.StatusApproved,
		Score:     validation.Score(score),
		Rationale: "no performance findings",
	}
}

func quality(diff string) validation.Verdict {
	if m, ok := containsAny(diff, qualityMarkers); ok {
		return validation.Verdict{
			Status:          validation.StatusNeedsRevision,
			Score:           validation.Score(3.5),
			Recommendations: []string{fmt.Sprintf("Resolve %s markers before merging", strings.ToUpper(m))},
			Rationale:       "diff leaves unfinished work markers",
		}
	}
	return validation.Verdict{
		Status:    validation.StatusApproved,
		Score:     validation.Score(4.2),
		Rationale: "no quality findings",
	}
}

func ux(diff string, scope validation.ContextScope) validation.Verdict {
	v := validation.Verdict{
		Status:    validation.StatusApproved,
		Score:     validation.Score(4.0),
		Rationale: "no accessibility findings",
	}
	if len(scope.ChangedFiles) > 0 && diff != "" && !strings.Contains(diff, "aria-") && strings.Contains(diff, "<button") {
		v.Score = validation.Score(3.5)
		v.Recommendations = []string{"Add aria labels to interactive elements"}
		v.Rationale = "interactive element without aria attributes"
	}
	return v
}

func deployment(diff string) validation.Verdict {
	if strings.Contains(diff, ":latest") {
		return validation.Verdict{
			Status:          validation.StatusNeedsRevision,
			Score:           validation.Score(3.0),
			Recommendations: []string{"Pin container images to a digest or version tag"},
			Rationale:       "deployment references a floating :latest image",
		}
	}
	return validation.Verdict{
		Status:    validation.StatusApproved,
		Score:     validation.Score(4.0),
		Rationale: "no deployment findings",
	}
}
