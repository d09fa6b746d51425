package agent

// devCertificate is a base64 PEM header accepted by the format check. Real deployments
// supply certificates through the roster file.
const devCertificate = "LS0tLS1CRUdJTiBDRVJUSUZJQ0FURS0tLS0t"

// StandardRoster returns the built-in agents registered by every coordinator.
func StandardRoster() []Descriptor {
	return []Descriptor{
		{
			Name:         NameArchitecture,
			Version:      "1.0.0",
			Capabilities: []string{"system-design", "component-architecture", "technical-approach"},
			TrustLevel:   TrustHigh,
			Certificate:  devCertificate,
		},
		{
			Name:         NameSecurity,
			Version:      "1.0.0",
			Capabilities: []string{"vulnerability-assessment", "compliance-check", "threat-analysis"},
			TrustLevel:   TrustCritical,
			Certificate:  devCertificate,
		},
		{
			Name:         NamePerformance,
			Version:      "1.0.0",
			Capabilities: []string{"performance-analysis", "resource-optimization", "bottleneck-detection"},
			TrustLevel:   TrustHigh,
			Certificate:  devCertificate,
		},
		{
			Name:         NameQuality,
			Version:      "1.0.0",
			Capabilities: []string{"code-review", "testing-coverage", "best-practices"},
			TrustLevel:   TrustHigh,
			Certificate:  devCertificate,
		},
		{
			Name:         NameUX,
			Version:      "1.0.0",
			Capabilities: []string{"accessibility-compliance", "internationalization", "user-experience"},
			TrustLevel:   TrustMedium,
		},
		{
			Name:         NameDeployment,
			Version:      "1.0.0",
			Capabilities: []string{"deployment-automation", "infrastructure-management", "ci-cd-optimization"},
			TrustLevel:   TrustMedium,
		},
	}
}
