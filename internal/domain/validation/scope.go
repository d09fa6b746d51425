package validation

import (
	"path"
	"strings"
)

// ContextScope is the reduced slice of the code universe relevant to one change.
// Created once per request and shared read-only by every agent.
type ContextScope struct {
	ChangedFiles       []string `json:"changed_files"`
	AffectedComponents []string `json:"affected_components"`
	Reduction          float64  `json:"reduction_percent"`
}

// Clone returns a deep copy of the scope.
func (s ContextScope) Clone() ContextScope {
	return ContextScope{
		ChangedFiles:       append([]string(nil), s.ChangedFiles...),
		AffectedComponents: append([]string(nil), s.AffectedComponents...),
		Reduction:          s.Reduction,
	}
}

// Reducer narrows a full file universe down to what a change touches.
type Reducer interface {
	Reduce(full, changed []string) ContextScope
}

// componentRule maps a path marker to the component a file belongs to.
type componentRule struct {
	marker    string
	component func(file string) string
}

func trimExt(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}

var defaultRules = []componentRule{
	{marker: "components/", component: trimExt},
	{marker: "hooks/", component: func(f string) string { return "hooks/" + trimExt(path.Base(f)) }},
	{marker: "internal/", component: path.Dir},
	{marker: "pkg/", component: path.Dir},
}

// PathHeuristic derives affected components from path prefixes only. It does no
// dependency-graph analysis.
type PathHeuristic struct{}

// Reduce implements Reducer.
func (PathHeuristic) Reduce(full, changed []string) ContextScope {
	seen := make(map[string]bool)
	var affected []string
	for _, f := range changed {
		f = strings.ReplaceAll(f, "\\", "/")
		for _, r := range defaultRules {
			if !strings.Contains(f, r.marker) {
				continue
			}
			c := r.component(f)
			if !seen[c] {
				seen[c] = true
				affected = append(affected, c)
			}
		}
	}

	return ContextScope{
		ChangedFiles:       append([]string(nil), changed...),
		AffectedComponents: affected,
		Reduction:          ReductionPercent(len(full), len(changed)+len(affected)),
	}
}

// ReductionPercent returns how much of the original universe was cut away, floored at zero.
func ReductionPercent(original, optimized int) float64 {
	if original <= 0 {
		return 0
	}
	r := float64(original-optimized) / float64(original) * 100
	if r < 0 {
		return 0
	}
	return r
}
