package consensus

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/quorumgate/internal/domain/agent"
	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
)

// Requirement is the multi-signature rule for one change type.
type Requirement struct {
	RequiredApprovals []string `json:"required_approvals" yaml:"required_approvals"`
	MinimumScore      float64  `json:"minimum_score" yaml:"minimum_score"`
	VetoPower         []string `json:"veto_power" yaml:"veto_power"`
	Immutable         bool     `json:"immutable,omitempty" yaml:"immutable,omitempty"`
}

// Validate checks that a requirement is usable.
func (r *Requirement) Validate() error {
	if len(r.RequiredApprovals) == 0 {
		return errors.New("at least one required approval is needed")
	}
	if r.MinimumScore < 0 || r.MinimumScore > validation.MaxScore {
		return fmt.Errorf("minimum_score must be between 0 and %.0f, got %v", validation.MaxScore, r.MinimumScore)
	}
	return nil
}

// Policy is the fixed table of requirements keyed by change type.
type Policy map[task.ChangeType]Requirement

// Validate checks that every change type has a valid requirement.
func (p Policy) Validate() error {
	for _, ct := range task.ChangeTypes() {
		req, ok := p[ct]
		if !ok {
			return fmt.Errorf("missing requirement for change type %q", ct)
		}
		if err := req.Validate(); err != nil {
			return fmt.Errorf("change type %q: %w", ct, err)
		}
	}
	return nil
}

// DefaultPolicy returns the built-in security-first policy table with the
// standard security validator as authority.
func DefaultPolicy() Policy {
	return PolicyFor(agent.NameSecurity)
}

// PolicyFor returns the built-in table with authority as the security
// approver. The authority holds veto power over every change type.
func PolicyFor(authority string) Policy {
	return Policy{
		task.ChangeArchitecture: {
			RequiredApprovals: []string{agent.NameArchitecture},
			MinimumScore:      4.0,
			VetoPower:         []string{authority},
		},
		task.ChangeSecurity: {
			RequiredApprovals: []string{authority},
			MinimumScore:      0,
			VetoPower:         []string{authority},
			Immutable:         true,
		},
		task.ChangePerformance: {
			RequiredApprovals: []string{agent.NamePerformance, agent.NameQuality},
			MinimumScore:      3.5,
			VetoPower:         []string{authority},
		},
		task.ChangeQuality: {
			RequiredApprovals: []string{agent.NameQuality, agent.NameArchitecture},
			MinimumScore:      4.0,
			VetoPower:         []string{authority},
		},
	}
}

// CheckAuthority reports whether authority is a required approver of security
// changes. Without it no security change could ever be approved.
func (p Policy) CheckAuthority(authority string) error {
	req, ok := p[task.ChangeSecurity]
	if !ok {
		return fmt.Errorf("missing requirement for change type %q", task.ChangeSecurity)
	}
	if !slices.Contains(req.RequiredApprovals, authority) {
		return fmt.Errorf("security authority %q is not a required approver of %q changes", authority, task.ChangeSecurity)
	}
	return nil
}

// LoadPolicy reads a policy table from YAML. An empty path or missing file yields
// PolicyFor(authority).
func LoadPolicy(path, authority string) (Policy, error) {
	if path == "" {
		return PolicyFor(authority), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return PolicyFor(authority), nil
		}
		return nil, fmt.Errorf("read policy file %s: %w", path, err)
	}

	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate policy file %s: %w", path, err)
	}
	return p, nil
}
