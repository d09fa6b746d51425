package agent

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rosterFile is the on-disk shape of an agent roster.
type rosterFile struct {
	Agents []Descriptor `yaml:"agents"`
}

// LoadRoster reads agent descriptors from a YAML file. A missing file yields the
// standard roster, matching the optional-file convention of the config loader.
func LoadRoster(path string) ([]Descriptor, error) {
	if path == "" {
		return StandardRoster(), nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StandardRoster(), nil
		}
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}

	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	if len(rf.Agents) == 0 {
		return nil, fmt.Errorf("roster %s: no agents defined", path)
	}

	seen := make(map[string]bool, len(rf.Agents))
	for i := range rf.Agents {
		if err := rf.Agents[i].Validate(); err != nil {
			return nil, fmt.Errorf("roster %s: agent %d: %w", path, i, err)
		}
		if seen[rf.Agents[i].Name] {
			return nil, fmt.Errorf("roster %s: duplicate agent %q", path, rf.Agents[i].Name)
		}
		seen[rf.Agents[i].Name] = true
	}
	return rf.Agents, nil
}
