// Package task defines the proposed change that agents validate.
package task

import (
	"fmt"
	"strings"
)

// ChangeType classifies a proposed change and selects its consensus policy.
type ChangeType string

const (
	ChangeArchitecture ChangeType = "architecture"
	ChangeSecurity     ChangeType = "security"
	ChangePerformance  ChangeType = "performance"
	ChangeQuality      ChangeType = "quality"
)

// ChangeTypes lists every known change type in policy-table order.
func ChangeTypes() []ChangeType {
	return []ChangeType{ChangeArchitecture, ChangeSecurity, ChangePerformance, ChangeQuality}
}

// ValidChangeType reports whether c is a known change type.
func ValidChangeType(c ChangeType) bool {
	switch c {
	case ChangeArchitecture, ChangeSecurity, ChangePerformance, ChangeQuality:
		return true
	}
	return false
}

// Task is the typed payload handed to every validation agent. It replaces the
// open-ended payload of the pipeline entry point with a closed set of fields.
type Task struct {
	ID          string            `json:"id" yaml:"id"`
	ChangeType  ChangeType        `json:"change_type" yaml:"change_type"`
	Title       string            `json:"title" yaml:"title"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Diff        string            `json:"diff,omitempty" yaml:"diff,omitempty"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Validate checks that a Task has the fields the pipeline depends on.
func (t *Task) Validate() error {
	if !ValidChangeType(t.ChangeType) {
		return fmt.Errorf("invalid change type: %q", t.ChangeType)
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// Clone returns a deep copy so an agent cannot mutate the caller's task.
func (t Task) Clone() Task {
	out := t
	if t.Labels != nil {
		out.Labels = make(map[string]string, len(t.Labels))
		for k, v := range t.Labels {
			out.Labels[k] = v
		}
	}
	return out
}
