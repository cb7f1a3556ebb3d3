// Package finding defines the vulnerability record produced by the probe
// families and the severity model derived from CVSS scores.
package finding

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies the probe family that produced a Finding.
type Kind string

const (
	CachePoisoning       Kind = "CachePoisoning"
	CacheDeception       Kind = "CacheDeception"
	CacheTiming          Kind = "CacheTiming"
	CacheKeyManipulation Kind = "CacheKeyManipulation"
	CacheProbing         Kind = "CacheProbing"
)

// Severity is the human-facing rating of a Finding, derived from its CVSS
// score when present.
type Severity string

const (
	Critical Severity = "Critical"
	High     Severity = "High"
	Medium   Severity = "Medium"
	Low      Severity = "Low"
	Info     Severity = "Info"
)

// FromCVSS derives a Severity from a CVSS score in [0.0, 10.0], using the
// thresholds 9.0 / 7.0 / 4.0 / 0.1.
func FromCVSS(score float32) Severity {
	switch {
	case score >= 9.0:
		return Critical
	case score >= 7.0:
		return High
	case score >= 4.0:
		return Medium
	case score >= 0.1:
		return Low
	default:
		return Info
	}
}

// Finding is a single observed, severity-rated vulnerability.
type Finding struct {
	// ID uniquely identifies this finding within a scan result. It has no
	// bearing on the dedup key, which remains (Kind, URL, Description) per
	// the testable invariant in spec.md §8.
	ID string `json:"id" yaml:"id"`

	Kind            Kind      `json:"kind" yaml:"kind"`
	URL             string    `json:"url" yaml:"url"`
	Description     string    `json:"description" yaml:"description"`
	Severity        Severity  `json:"severity" yaml:"severity"`
	ProofOfConcept  string    `json:"proof_of_concept" yaml:"proof_of_concept"`
	Remediation     string    `json:"remediation" yaml:"remediation"`
	DiscoveredAt    time.Time `json:"discovered_at" yaml:"discovered_at"`
	CVSS            *float32  `json:"cvss,omitempty" yaml:"cvss,omitempty"`
	References      []string  `json:"references" yaml:"references"`
	// EvidenceRef is an opaque key into an evidence.Store for the raw
	// response bytes behind this finding. Empty when no store is wired.
	EvidenceRef string `json:"evidence_ref,omitempty" yaml:"evidence_ref,omitempty"`
}

// New builds a Finding, stamping its ID and severity (derived from cvss
// when non-nil) consistently. discoveredAt is taken from the caller rather
// than from time.Now directly, so every Finding's timestamp traces back to
// the single Clock collaborator named in spec.md §6.
func New(kind Kind, url, description string, cvss *float32, poc, remediation string, refs []string, discoveredAt time.Time) Finding {
	sev := Info
	if cvss != nil {
		sev = FromCVSS(*cvss)
	}
	return Finding{
		ID:             uuid.NewString(),
		Kind:           kind,
		URL:            url,
		Description:    description,
		Severity:       sev,
		ProofOfConcept: poc,
		Remediation:    remediation,
		DiscoveredAt:   discoveredAt,
		CVSS:           cvss,
		References:     refs,
	}
}

// DedupKey returns the (kind, url, description) tuple used to detect
// duplicate findings across probe families, per spec.md §3's ScanResult
// invariant.
func (f Finding) DedupKey() [3]string {
	return [3]string{string(f.Kind), f.URL, f.Description}
}

// CVSSPtr lets probe families write finding.CVSSPtr(7.5) inline instead of
// taking the address of a local variable.
func CVSSPtr(v float32) *float32 {
	return &v
}
