package litellm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"

	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
)

// maxDiffChars caps the diff embedded in a prompt.
const maxDiffChars = 24000

var rolePrompts = map[string]string{
	agent.NameSecurity:     "You are a security reviewer. Look for leaked credentials, injection, unsafe deserialization, missing authorization and weakened crypto. Reject anything that ships a vulnerability.",
	agent.NameArchitecture: "You are a software architect. Judge module boundaries, coupling, layering and whether the change fits the existing design.",
	agent.NamePerformance:  "You are a performance engineer. Look for hot-path allocations, N+1 queries, unbounded growth and blocking calls.",
	agent.NameQuality:      "You are a code quality reviewer. Judge readability, naming, error handling, tests and dead code.",
	agent.NameUX:           "You are a UX and accessibility reviewer. Judge user-facing behaviour, accessibility and consistency.",
	agent.NameDeployment:   "You are a deployment engineer. Judge rollout safety, configuration, migrations and observability.",
}

const answerFormat = `Answer with one JSON object and nothing else:
{"status":"APPROVED|REJECTED|NEEDS_REVISION","score":0-5,"recommendations":["..."],"rationale":"...","conflicts":[{"type":"ARCHITECTURAL|SECURITY|PERFORMANCE|QUALITY","severity":"LOW|MEDIUM|HIGH|CRITICAL","description":"..."}]}`

// Validator scores a change by asking a model to review it in the agent's role.
// Calls from every concurrent run share one slot pool.
type Validator struct {
	client *Client
	model  string
	slots  *semaphore.Weighted
}

// NewValidator creates a model-backed validator allowing at most maxConcurrent
// completions in flight.
func NewValidator(c *Client, model string, maxConcurrent int) *Validator {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Validator{client: c, model: model, slots: semaphore.NewWeighted(int64(maxConcurrent))}
}

// Validate implements validator.Validator. It returns ctx.Err() if the context
// ends while waiting for a slot.
func (v *Validator) Validate(ctx context.Context, a agent.Descriptor, t task.Task, scope validation.ContextScope) (validation.Verdict, error) {
	if err := v.slots.Acquire(ctx, 1); err != nil {
		return validation.Verdict{}, err
	}
	defer v.slots.Release(1)

	content, err := v.client.Complete(ctx, ChatRequest{
		Model: v.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt(&a)},
			{Role: "user", Content: userPrompt(&t, &scope)},
		},
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return validation.Verdict{}, fmt.Errorf("%s: %w", a.Name, err)
	}
	verdict, err := ParseVerdict(content)
	if err != nil {
		return validation.Verdict{}, fmt.Errorf("%s: %w", a.Name, err)
	}
	return verdict, nil
}

func systemPrompt(a *agent.Descriptor) string {
	role, ok := rolePrompts[a.Name]
	if !ok {
		role = fmt.Sprintf("You are the %q reviewer with capabilities: %s.", a.Name, strings.Join(a.Capabilities, ", "))
	}
	return role + "\n\n" + answerFormat
}

func userPrompt(t *task.Task, scope *validation.ContextScope) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Change type: %s\nTitle: %s\n", t.ChangeType, t.Title)
	if t.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", t.Description)
	}
	fmt.Fprintf(&b, "Changed files: %s\n", strings.Join(scope.ChangedFiles, ", "))
	if len(scope.AffectedComponents) > 0 {
		fmt.Fprintf(&b, "Affected components: %s\n", strings.Join(scope.AffectedComponents, ", "))
	}
	if t.Diff != "" {
		fmt.Fprintf(&b, "\nDiff:\n%s\n", truncateDiff(t.Diff, maxDiffChars))
	}
	return b.String()
}

// ParseVerdict decodes a model answer. Code fences around the object are
// tolerated; anything else that is not a well-formed verdict is an error.
func ParseVerdict(content string) (validation.Verdict, error) {
	s := strings.TrimSpace(content)
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}

	var v validation.Verdict
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return validation.Verdict{}, fmt.Errorf("parse verdict: %w", err)
	}
	v.Status = validation.Status(strings.ToUpper(string(v.Status)))
	if !validation.ValidStatus(v.Status) {
		return validation.Verdict{}, fmt.Errorf("parse verdict: unknown status %q", v.Status)
	}
	if v.Score == nil {
		return validation.Verdict{}, fmt.Errorf("parse verdict: score is missing")
	}
	if v.Recommendations == nil {
		v.Recommendations = []string{}
	}
	return v, nil
}

// truncateDiff cuts diff to at most limit bytes without splitting a UTF-8
// sequence.
func truncateDiff(diff string, limit int) string {
	if len(diff) <= limit {
		return diff
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(diff[cut]) {
		cut--
	}
	return diff[:cut] + "\n[diff truncated]"
}
