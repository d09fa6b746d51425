// Package scripted implements a validator whose verdicts come from a YAML script.
// It backs the CLI check command and serves as the deterministic test double.
package scripted

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
)

// ErrNoVerdict is returned when the script has no entry for an agent and no default.
var ErrNoVerdict = errors.New("scripted: no verdict for agent")

// Entry is one scripted outcome. Fail makes the validator return an error with
// that text; Delay simulates scoring latency.
type Entry struct {
	validation.Verdict `yaml:",inline"`
	Fail               string        `yaml:"fail,omitempty"`
	Delay              time.Duration `yaml:"delay,omitempty"`
}

// Script maps agent names to outcomes.
type Script struct {
	Verdicts map[string]Entry `yaml:"verdicts"`
	Default  *Entry           `yaml:"default,omitempty"`
}

// Validator replays a Script.
type Validator struct {
	script Script
}

// New creates a Validator from an in-memory script.
func New(s Script) *Validator {
	if s.Verdicts == nil {
		s.Verdicts = map[string]Entry{}
	}
	return &Validator{script: s}
}

// Load reads a script from a YAML file.
func Load(path string) (*Validator, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator input
	if err != nil {
		return nil, fmt.Errorf("read verdicts %s: %w", path, err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse verdicts %s: %w", path, err)
	}
	for name, e := range s.Verdicts {
		if e.Fail == "" && !validation.ValidStatus(e.Status) {
			return nil, fmt.Errorf("verdict for %s: invalid status %q", name, e.Status)
		}
	}
	if s.Default != nil && s.Default.Fail == "" && !validation.ValidStatus(s.Default.Status) {
		return nil, fmt.Errorf("default verdict: invalid status %q", s.Default.Status)
	}
	return New(s), nil
}

// Validate implements validator.Validator.
func (v *Validator) Validate(ctx context.Context, a agent.Descriptor, _ task.Task, _ validation.ContextScope) (validation.Verdict, error) {
	e, ok := v.script.Verdicts[a.Name]
	if !ok {
		if v.script.Default == nil {
			return validation.Verdict{}, fmt.Errorf("%w: %s", ErrNoVerdict, a.Name)
		}
		e = *v.script.Default
	}

	if e.Delay > 0 {
		timer := time.NewTimer(e.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return validation.Verdict{}, ctx.Err()
		case <-timer.C:
		}
	}
	if e.Fail != "" {
		return validation.Verdict{}, errors.New(e.Fail)
	}
	return cloneVerdict(e.Verdict), nil
}

func cloneVerdict(v validation.Verdict) validation.Verdict {
	out := v
	if v.Score != nil {
		out.Score = validation.Score(*v.Score)
	}
	out.Recommendations = append([]string(nil), v.Recommendations...)
	if v.Conflicts != nil {
		out.Conflicts = make([]validation.Conflict, len(v.Conflicts))
		for i, c := range v.Conflicts {
			c.AffectedAgents = append([]string(nil), c.AffectedAgents...)
			out.Conflicts[i] = c
		}
	}
	return out
}
