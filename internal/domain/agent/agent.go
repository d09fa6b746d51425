// Package agent defines the validation agent identity: descriptors, trust levels
// and the registered (signed) form kept by the isolation framework.
package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TrustLevel is the ordinal trust category of an agent.
type TrustLevel string

const (
	TrustLow      TrustLevel = "LOW"
	TrustMedium   TrustLevel = "MEDIUM"
	TrustHigh     TrustLevel = "HIGH"
	TrustCritical TrustLevel = "CRITICAL"
)

// ValidTrustLevel reports whether t is a known trust level.
func ValidTrustLevel(t TrustLevel) bool {
	switch t {
	case TrustLow, TrustMedium, TrustHigh, TrustCritical:
		return true
	}
	return false
}

// RequiresCertificate reports whether agents at this trust level must present a certificate.
func (t TrustLevel) RequiresCertificate() bool {
	return t == TrustHigh || t == TrustCritical
}

// Well-known agent names of the standard roster.
const (
	NameArchitecture = "architecture-designer"
	NameSecurity     = "security-validator"
	NamePerformance  = "performance-optimizer"
	NameQuality      = "code-quality-analyzer"
	NameUX           = "ux-accessibility-i18n-agent"
	NameDeployment   = "devops-deployment-agent"
)

// Descriptor describes a validation participant before registration.
type Descriptor struct {
	Name         string     `json:"name" yaml:"name"`
	Version      string     `json:"version" yaml:"version"`
	Capabilities []string   `json:"capabilities" yaml:"capabilities"`
	TrustLevel   TrustLevel `json:"trust_level" yaml:"trust_level"`
	Certificate  string     `json:"certificate,omitempty" yaml:"certificate,omitempty"`
}

// Validate checks the structural fields of a descriptor. Certificate checks
// live in ValidateCertificate because they map to a distinct error.
func (d *Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if d.Version == "" {
		return fmt.Errorf("version is required")
	}
	if !ValidTrustLevel(d.TrustLevel) {
		return fmt.Errorf("invalid trust level: %q", d.TrustLevel)
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate registry state through shared slices.
func (d Descriptor) Clone() Descriptor {
	out := d
	out.Capabilities = append([]string(nil), d.Capabilities...)
	return out
}

// Canonical returns the deterministic byte form used for ids and signatures.
// Field order is fixed by the struct definition.
func (d *Descriptor) Canonical() []byte {
	b, _ := json.Marshal(d) // a struct of strings cannot fail to marshal
	return b
}

// DeriveID returns the stable 16-hex-char id for a descriptor.
func DeriveID(d *Descriptor) string {
	sum := sha256.Sum256(d.Canonical())
	return hex.EncodeToString(sum[:])[:16]
}

// Registered is an agent admitted to the registry. It is never mutated after registration.
type Registered struct {
	ID           string     `json:"id"`
	Descriptor   Descriptor `json:"descriptor"`
	Signature    string     `json:"signature"`
	RegisteredAt time.Time  `json:"registered_at"`
}
