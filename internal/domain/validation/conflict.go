package validation

// ConflictType classifies a disagreement between agents.
type ConflictType string

const (
	ConflictArchitectural ConflictType = "ARCHITECTURAL"
	ConflictSecurity      ConflictType = "SECURITY"
	ConflictPerformance   ConflictType = "PERFORMANCE"
	ConflictQuality       ConflictType = "QUALITY"
)

// Severity ranks a conflict.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// StrategyType is how a conflict gets resolved.
type StrategyType string

const (
	StrategyConsensus           StrategyType = "CONSENSUS"
	StrategySecurityOverride    StrategyType = "SECURITY_OVERRIDE"
	StrategyPerformancePriority StrategyType = "PERFORMANCE_PRIORITY"
	StrategyHumanEscalation     StrategyType = "HUMAN_ESCALATION"
)

// Resolution describes how a conflict is settled and who must sign off.
type Resolution struct {
	Type              StrategyType `json:"type" yaml:"type"`
	RequiredApprovals []string     `json:"required_approvals" yaml:"required_approvals"`
	Rationale         string       `json:"rationale" yaml:"rationale"`
}

// Conflict is a detected or agent-reported disagreement.
type Conflict struct {
	Type           ConflictType `json:"type" yaml:"type"`
	Severity       Severity     `json:"severity" yaml:"severity"`
	Description    string       `json:"description" yaml:"description"`
	AffectedAgents []string     `json:"affected_agents" yaml:"affected_agents"`
	Resolution     *Resolution  `json:"resolution,omitempty" yaml:"resolution,omitempty"`
}
